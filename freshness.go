package cc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"
)

func modTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}

// needsRebuild decides whether t must be rebuilt. It must only be called once t's prerequisites
// have been satisfied.
//
// Phony targets always rebuild. A file target rebuilds if its file is absent, if any of its
// non-phony prerequisites is absent, or if any of its timestamp-significant, non-phony
// prerequisites is strictly newer than it. Order-only prerequisites only need to exist. A stage
// target also rebuilds if its destination holds anything besides the staged artifact.
func (proj *Project) needsRebuild(t *Target) (bool, string, error) {
	if t.phony {
		return true, "phony", nil
	}

	mtime, ok, err := modTime(t.path)
	switch {
	case err != nil:
		return false, "", err
	case !ok:
		return true, "missing output", nil
	}

	if stage, ok := t.action.(*StageAction); ok {
		stray, err := strayEntry(proj.path(stage.Into), path.Base(stage.Artifact))
		switch {
		case err != nil:
			return false, "", err
		case stray != "":
			return true, fmt.Sprintf("%v holds stray entry %v", stage.Into, stray), nil
		}
	}

	for _, p := range t.prereqs {
		dep, err := proj.Target(p.Name)
		if err != nil {
			return false, "", err
		}
		if dep.phony {
			continue
		}

		depTime, ok, err := modTime(dep.path)
		switch {
		case err != nil:
			return false, "", err
		case !ok:
			return true, fmt.Sprintf("missing prerequisite %v", p.Name), nil
		case p.Kind == TimestampSignificant && depTime.After(mtime):
			return true, fmt.Sprintf("%v is newer", p.Name), nil
		}
	}
	return false, "", nil
}

// strayEntry returns the name of an entry in dir other than keep, if any.
func strayEntry(dir, keep string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	for _, e := range entries {
		if e.Name() != keep {
			return e.Name(), nil
		}
	}
	return "", nil
}
