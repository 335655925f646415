package stage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o755))
	return path
}

func entries(t *testing.T, dir string) []string {
	t.Helper()

	es, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, len(es))
	for i, e := range es {
		names[i] = e.Name()
	}
	return names
}

func TestStageCreatesDestination(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "v1")
	dest := filepath.Join(root, "build", "release")

	s := New(artifact, dest)
	require.NoError(t, s.Run())
	assert.Equal(t, Done, s.State())
	assert.Equal(t, filepath.Join(dest, "app"), s.Path())
	assert.Equal(t, int64(2), s.Size())

	assert.Equal(t, []string{"app"}, entries(t, dest))
	contents, err := os.ReadFile(filepath.Join(dest, "app"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(contents))
}

func TestStageClearsLeftovers(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "new")
	dest := filepath.Join(root, "build", "release")

	writeArtifact(t, dest, "app", "old")
	writeArtifact(t, dest, "stale.txt", "stale")
	writeArtifact(t, dest, "assets/nested/sprite.png", "png")

	require.NoError(t, Stage(artifact, dest))
	assert.Equal(t, []string{"app"}, entries(t, dest))

	contents, err := os.ReadFile(filepath.Join(dest, "app"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(contents))
}

func TestStagePreservesDestinationDirectory(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/debug/app", "bin")
	dest := filepath.Join(root, "build", "debug")
	require.NoError(t, os.MkdirAll(dest, 0o700))

	before, err := os.Stat(dest)
	require.NoError(t, err)

	require.NoError(t, Stage(artifact, dest))

	after, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after))
	assert.Equal(t, before.Mode().Perm(), after.Mode().Perm())
}

func TestStagePreservesExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no executable bit on windows")
	}

	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "#!/bin/sh\n")
	require.NoError(t, os.Chmod(artifact, 0o755))
	dest := filepath.Join(root, "build", "release")

	require.NoError(t, Stage(artifact, dest))

	info, err := os.Stat(filepath.Join(dest, "app"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111)
}

func TestStageIsRepeatable(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "same")
	dest := filepath.Join(root, "build", "release")

	require.NoError(t, Stage(artifact, dest))
	first, err := os.ReadFile(filepath.Join(dest, "app"))
	require.NoError(t, err)

	require.NoError(t, Stage(artifact, dest))
	second, err := os.ReadFile(filepath.Join(dest, "app"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"app"}, entries(t, dest))
}

func TestStageMissingArtifact(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "build", "release")
	writeArtifact(t, dest, "app", "old")

	s := New(filepath.Join(root, "target", "release", "app"), dest)
	err := s.Run()
	require.Error(t, err)
	assert.Equal(t, Failed, s.State())

	var stageErr *Error
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, Prepare, stageErr.Step)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	// The destination was never cleared.
	assert.Equal(t, []string{"app"}, entries(t, dest))
}

func TestStageDestinationIsFile(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "bin")
	dest := writeArtifact(t, root, "build/release", "not a directory")

	err := Stage(artifact, dest)

	var stageErr *Error
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, Prepare, stageErr.Step)
}

func TestStagerSteps(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "bin")
	dest := filepath.Join(root, "build", "release")
	writeArtifact(t, dest, "leftover", "x")

	s := New(artifact, dest)
	assert.Equal(t, Prepare, s.State())

	require.NoError(t, s.Step())
	assert.Equal(t, Clear, s.State())
	assert.Equal(t, []string{"leftover"}, entries(t, dest))

	require.NoError(t, s.Step())
	assert.Equal(t, Copy, s.State())
	assert.Empty(t, entries(t, dest))

	require.NoError(t, s.Step())
	assert.Equal(t, Done, s.State())
	assert.Equal(t, []string{"app"}, entries(t, dest))

	// Stepping a finished stager does nothing.
	require.NoError(t, s.Step())
	assert.Equal(t, Done, s.State())
}

func TestCopyFailureLeavesDestinationEmpty(t *testing.T) {
	root := t.TempDir()
	artifact := writeArtifact(t, root, "target/release/app", "bin")
	dest := filepath.Join(root, "build", "release")
	writeArtifact(t, dest, "leftover", "x")

	s := New(artifact, dest)
	require.NoError(t, s.Step())
	require.NoError(t, s.Step())

	// The artifact disappears between clearing and copying.
	require.NoError(t, os.Remove(artifact))

	err := s.Step()
	var stageErr *Error
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, Copy, stageErr.Step)
	assert.Equal(t, Failed, s.State())
	assert.Empty(t, entries(t, dest))
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "build")
	writeArtifact(t, out, "debug/app", "d")
	writeArtifact(t, out, "release/app", "r")

	require.NoError(t, Clean(out))
	_, err := os.Stat(out)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	// Cleaning twice is not an error.
	require.NoError(t, Clean(out))
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "prepare", Prepare.String())
	assert.Equal(t, "clear", Clear.String())
	assert.Equal(t, "copy", Copy.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Step(42)", Step(42).String())
}
