package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileGlobs(t *testing.T) {
	re, err := CompileGlobs([]string{"src/**/*.rs", "Cargo.toml", "assets/?.png"})
	require.NoError(t, err)

	for _, match := range []string{"src/main.rs", "src/game/world.rs", "src/a/b/c.rs", "Cargo.toml", "assets/a.png"} {
		assert.True(t, re.MatchString(match), match)
	}
	for _, miss := range []string{"src/main.go", "main.rs", "Cargo.lock", "CargoXtoml", "assets/ab.png", "assets/a/b.png"} {
		assert.False(t, re.MatchString(miss), miss)
	}
}

func TestCompileGlobsInvalidEscape(t *testing.T) {
	_, err := CompileGlobs([]string{`src/\x`})
	assert.Error(t, err)

	_, err = CompileGlobs([]string{`src\`})
	assert.Error(t, err)
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{"Cargo.toml", "src/main.rs", "src/game/world.rs", "src/notes.txt", "target/debug/build.rs", ".cc/x.rs"} {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}

	skip := func(rel string) bool { return rel == "target" || rel == ".cc" }

	matches, err := Glob(root, []string{"src/**/*.rs", "Cargo.toml", "build.rs"}, skip)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cargo.toml", "build.rs", "src/game/world.rs", "src/main.rs"}, matches)

	matches, err = Glob(root, []string{"**/*.rs"}, skip)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/game/world.rs", "src/main.rs"}, matches)

	matches, err = Glob(root, []string{"missing/*.rs"}, skip)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
