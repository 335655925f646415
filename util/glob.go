package util

import (
	"errors"
	"io/fs"
	"maps"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// CompileGlobs compiles a set of slash-separated glob patterns into a single regular expression
// that matches any of them.
func CompileGlobs(globs []string) (*regexp.Regexp, error) {
	// *   -> [^/]*
	// **/ -> (.*/)?
	// **  -> .*
	// ?   -> [^/]
	// \*  -> \*
	// \\  -> \\
	// \?  -> \?
	// \[  -> \[
	// \]  -> \]

	var pattern strings.Builder
	pattern.WriteRune('^')
	for i, g := range globs {
		if i > 0 {
			pattern.WriteRune('|')
		}
		pattern.WriteRune('(')
		for i := 0; i < len(g); {
			switch b := g[i]; b {
			case '\\':
				if i == len(g)-1 {
					return nil, errors.New("invalid escape sequence")
				}

				switch c := g[i+1]; c {
				case '\\', '*', '?', '[', ']':
					pattern.WriteByte(b)
					pattern.WriteByte(c)
					i++
				default:
					return nil, errors.New("invalid escape sequence")
				}

			case '*':
				switch {
				case strings.HasPrefix(g[i:], "**/"):
					pattern.WriteString("(.*/)?")
					i += 2
				case strings.HasPrefix(g[i:], "**"):
					pattern.WriteString(".*")
					i++
				default:
					pattern.WriteString("[^/]*")
				}
			case '?':
				pattern.WriteString("[^/]")
			case '.', '+', '(', ')', '|', '{', '}', '^', '$', '[', ']':
				pattern.WriteByte('\\')
				pattern.WriteByte(b)
			default:
				pattern.WriteByte(b)
			}
			i++
		}
		pattern.WriteRune(')')
	}
	pattern.WriteRune('$')

	return regexp.Compile(pattern.String())
}

// globPrefix returns the longest directory prefix of a pattern that contains no wildcards.
func globPrefix(pattern string) string {
	meta := strings.IndexAny(pattern, `*?\`)
	if meta == -1 {
		return pattern
	}
	dir, _ := path.Split(pattern[:meta])
	return path.Clean(dir)
}

// Glob returns the slash-separated, root-relative paths of the regular files under root that
// match any of the given patterns. Directories for which skip returns true are not searched.
// Patterns without wildcards name a single file, which need not exist; they are returned as-is.
// The result is sorted.
func Glob(root string, patterns []string, skip func(rel string) bool) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	re, err := CompileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	matches := map[string]bool{}
	walked := map[string]bool{}
	for _, p := range patterns {
		prefix := globPrefix(p)
		if prefix == p {
			matches[path.Clean(p)] = true
			continue
		}
		if walked[prefix] {
			continue
		}
		walked[prefix] = true

		err := filepath.WalkDir(filepath.Join(root, filepath.FromSlash(prefix)), func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel != "." && skip != nil && skip(rel) {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && re.MatchString(rel) {
				matches[rel] = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return slices.Sorted(maps.Keys(matches)), nil
}
