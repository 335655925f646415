package cc

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/otiai10/copy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thismarvin/cc/internal/project"
	"github.com/thismarvin/cc/runner"
	"github.com/thismarvin/cc/stage"
)

type recordEvents struct {
	discardEventsT

	m      sync.Mutex
	events []string
	lines  []string
}

func (e *recordEvents) record(format string, args ...string) {
	e.m.Lock()
	defer e.m.Unlock()

	e.events = append(e.events, strings.TrimSpace(format+" "+strings.Join(args, " ")))
}

func (e *recordEvents) Print(target string, line string) {
	e.m.Lock()
	defer e.m.Unlock()

	e.lines = append(e.lines, target+": "+line)
}

func (e *recordEvents) TargetUpToDate(target string) { e.record("up-to-date", target) }

func (e *recordEvents) TargetEvaluating(target string, reason string) { e.record("evaluating", target) }

func (e *recordEvents) TargetFailed(target string, err error) { e.record("failed", target) }

func (e *recordEvents) Staged(target, artifact, dest string, size int64) {
	e.record("staged", artifact, dest)
}

func (e *recordEvents) FileChanged(path string) { e.record("changed", path) }

func (e *recordEvents) take() []string {
	e.m.Lock()
	defer e.m.Unlock()

	events := e.events
	e.events = nil
	return events
}

func skipWithoutPOSIX(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fixture commands require a POSIX userland")
	}
}

// copyFixture copies a project from testdata into a temporary directory.
func copyFixture(t *testing.T, name string) string {
	dir := t.TempDir()
	require.NoError(t, copy.Copy(filepath.Join("testdata", name), dir))
	return dir
}

// writeProject writes a project with the given configuration into a temporary directory.
func writeProject(t *testing.T, config string, files ...string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.ConfigFileName), []byte(config), 0o600))
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0o600))
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(contents)
}

func setMtime(t *testing.T, path string, mtime time.Time) {
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestLoadGraph(t *testing.T) {
	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "game", proj.Name())
	assert.Equal(t, "v0.1.0", proj.Version())
	assert.Equal(t, "debug", proj.Default())
	assert.Equal(t, []string{"Cargo.toml", "src/game.rs", "src/main.rs"}, proj.Sources())

	names := make([]string, 0)
	for _, target := range proj.Targets() {
		names = append(names, target.Name())
	}
	assert.Equal(t, []string{
		"all", "debug", "release", "dev", "clean",
		"build/debug", "build/release",
		"target/debug/game", "target/release/game",
		"build/debug/game", "build/release/game",
	}, names)

	staged, err := proj.Target("build/release/game")
	require.NoError(t, err)
	assert.False(t, staged.IsPhony())
	assert.Equal(t, filepath.Join(dir, "build", "release", "game"), staged.Path())
	assert.Equal(t, []Prerequisite{
		{Name: "target/release/game", Kind: TimestampSignificant},
		{Name: "build/release", Kind: OrderOnly},
	}, staged.Prerequisites())
	assert.Equal(t, &StageAction{Artifact: "target/release/game", Into: "build/release"}, staged.Action())

	artifact, err := proj.Target("target/release/game")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cargo.toml", "src/game.rs", "src/main.rs"}, artifact.Dependencies())

	main, err := proj.Target("src/main.rs")
	require.NoError(t, err)
	assert.True(t, main.IsSource())

	dev, err := proj.Target("dev")
	require.NoError(t, err)
	assert.Equal(t, "stage a debug binary and run it", dev.Doc())
	assert.Equal(t, &CommandAction{Command: "./${name}", Dir: filepath.Join(dir, "build", "debug"), Interactive: true}, dev.Action())
}

func TestHelp(t *testing.T) {
	dir := writeProject(t, `
## build : compile the project
## run   : run the project
## clean : remove build outputs

[[target]]
name = "build"
phony = true
`)

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, []project.HelpEntry{
		{Name: "build", Description: "compile the project"},
		{Name: "run", Description: "run the project"},
		{Name: "clean", Description: "remove build outputs"},
	}, proj.Help())
}

func TestRelease(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build", "release", "stale"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build", "release", "old-game"), nil, 0o600))

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)

	err = proj.Run(t.Context(), "release", nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "build", "release"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "game", entries[0].Name())

	info, err := os.Stat(filepath.Join(dir, "build", "release", "game"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)

	assert.Equal(t, "#!/bin/sh\necho \"game release\"\n", readFile(t, filepath.Join(dir, "build", "release", "game")))
	assert.Equal(t, "release\n", readFile(t, filepath.Join(dir, "target", "builds.log")))
	assert.NoDirExists(t, filepath.Join(dir, "build", "debug"))

	assert.Equal(t, []string{
		"up-to-date Cargo.toml",
		"up-to-date src/game.rs",
		"up-to-date src/main.rs",
		"evaluating target/release/game",
		"up-to-date build/release",
		"evaluating build/release/game",
		"staged target/release/game build/release",
	}, events.take())
	assert.Contains(t, events.lines, "target/release/game: Compiling game v0.1.0 (release)")
}

func TestReleaseRemovesLeftovers(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)

	require.NoError(t, proj.Run(t.Context(), "release", nil))
	events.take()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "build", "release", "leftover"), nil, 0o600))
	require.NoError(t, proj.Run(t.Context(), "release", nil))

	entries, err := os.ReadDir(filepath.Join(dir, "build", "release"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "game", entries[0].Name())

	assert.Equal(t, []string{
		"up-to-date Cargo.toml",
		"up-to-date src/game.rs",
		"up-to-date src/main.rs",
		"up-to-date target/release/game",
		"up-to-date build/release",
		"evaluating build/release/game",
		"staged target/release/game build/release",
	}, events.take())

	// The artifact was not rebuilt.
	assert.Equal(t, "release\n", readFile(t, filepath.Join(dir, "target", "builds.log")))
}

func TestUpToDate(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)

	require.NoError(t, proj.Run(t.Context(), "debug", nil))
	events.take()

	require.NoError(t, proj.Run(t.Context(), "debug", nil))
	assert.Equal(t, "debug\n", readFile(t, filepath.Join(dir, "target", "builds.log")))
	assert.Equal(t, []string{
		"up-to-date Cargo.toml",
		"up-to-date src/game.rs",
		"up-to-date src/main.rs",
		"up-to-date target/debug/game",
		"up-to-date build/debug",
		"up-to-date build/debug/game",
	}, events.take())
}

func TestSourceChangeRebuilds(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)
	require.NoError(t, proj.Run(t.Context(), "debug", nil))

	now := time.Now()
	setMtime(t, filepath.Join(dir, "target", "debug", "game"), now.Add(-2*time.Hour))
	setMtime(t, filepath.Join(dir, "build", "debug", "game"), now.Add(-2*time.Hour))
	setMtime(t, filepath.Join(dir, "src", "game.rs"), now.Add(-time.Hour))

	require.NoError(t, proj.Run(t.Context(), "debug", nil))
	assert.Equal(t, "debug\ndebug\n", readFile(t, filepath.Join(dir, "target", "builds.log")))

	info, err := os.Stat(filepath.Join(dir, "build", "debug", "game"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(now.Add(-time.Hour)))
}

func TestOrderOnlyIgnoresTimestamps(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)
	require.NoError(t, proj.Run(t.Context(), "release", nil))
	events.take()

	setMtime(t, filepath.Join(dir, "build", "release"), time.Now().Add(time.Hour))

	require.NoError(t, proj.Run(t.Context(), "release", nil))
	assert.Contains(t, events.take(), "up-to-date build/release/game")
}

func TestCommandFailure(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Args: []string{"--fail", "yes"}, Events: events})
	require.NoError(t, err)

	err = proj.Run(t.Context(), "release", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependenciesFailed)

	var commandErr *CommandFailedError
	require.ErrorAs(t, err, &commandErr)
	assert.Equal(t, "target/release/game", commandErr.Target)
	status, ok := commandErr.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, 101, status)

	assert.NoFileExists(t, filepath.Join(dir, "target", "release", "game"))
	assert.NoDirExists(t, filepath.Join(dir, "build", "release"))

	// The run stops at the first failure.
	recorded := events.take()
	assert.Equal(t, "failed target/release/game", recorded[len(recorded)-1])
	assert.Contains(t, events.lines, "target/release/game: error: could not compile game")
}

func TestCleanThenRelease(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)
	require.NoError(t, proj.Run(t.Context(), "debug", nil))
	require.NoError(t, proj.Run(t.Context(), "release", nil))

	require.NoError(t, proj.Run(t.Context(), "all", nil))

	assert.NoDirExists(t, filepath.Join(dir, "build", "debug"))
	assert.FileExists(t, filepath.Join(dir, "build", "release", "game"))

	// The compiler's output survives a clean, so it is not rebuilt.
	assert.Equal(t, "debug\nrelease\n", readFile(t, filepath.Join(dir, "target", "builds.log")))
}

func TestClean(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)
	require.NoError(t, proj.Run(t.Context(), "release", nil))

	require.NoError(t, proj.Run(t.Context(), "clean", nil))
	assert.NoDirExists(t, filepath.Join(dir, "build"))

	require.NoError(t, proj.Run(t.Context(), "clean", nil))
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	assert.FileExists(t, filepath.Join(dir, "target", "release", "game"))
}

func TestDev(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	var stdout strings.Builder
	proj, err := Load(dir, &LoadOptions{Stdout: &stdout, Stderr: &stdout})
	require.NoError(t, err)

	require.NoError(t, proj.Run(t.Context(), "dev", nil))
	assert.Equal(t, "game debug\n", stdout.String())
	assert.NoDirExists(t, filepath.Join(dir, "build", "release"))
}

func TestDryRun(t *testing.T) {
	dir := copyFixture(t, "game")

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)

	require.NoError(t, proj.Run(t.Context(), "release", &RunOptions{DryRun: true}))
	assert.NoDirExists(t, filepath.Join(dir, "target"))
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	assert.Equal(t, []string{
		"up-to-date Cargo.toml",
		"up-to-date src/game.rs",
		"up-to-date src/main.rs",
		"evaluating target/release/game",
		"evaluating build/release",
		"evaluating build/release/game",
	}, events.take())
}

func TestAlways(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)
	require.NoError(t, proj.Run(t.Context(), "debug", nil))
	require.NoError(t, proj.Run(t.Context(), "debug", &RunOptions{Always: true}))

	assert.Equal(t, "debug\ndebug\n", readFile(t, filepath.Join(dir, "target", "builds.log")))
}

func TestLock(t *testing.T) {
	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, WorkDir), 0o750))
	held := flock.New(filepath.Join(dir, WorkDir, "lock"))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	err = proj.Run(t.Context(), "clean", &RunOptions{Lock: true})
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, held.Unlock())
	assert.NoError(t, proj.Run(t.Context(), "clean", &RunOptions{Lock: true}))
}

func TestUnknownTarget(t *testing.T) {
	dir := copyFixture(t, "game")

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	err = proj.Run(t.Context(), "relase", nil)
	var unknown UnknownTargetError
	require.ErrorAs(t, err, &unknown)
	assert.EqualError(t, err, "unknown target relase; did you mean release?")

	_, err = proj.Target("package")
	assert.EqualError(t, err, "unknown target package")
}

func TestUnknownPrerequisite(t *testing.T) {
	dir := writeProject(t, `
[[target]]
name = "all"
phony = true
deps = ["package"]
`)

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)

	err = proj.Run(t.Context(), "all", nil)
	var unknown UnknownTargetError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"failed all"}, events.take())
}

func TestCyclicDependency(t *testing.T) {
	dir := writeProject(t, `
[[target]]
name = "a"
phony = true
deps = ["b"]

[[target]]
name = "b"
phony = true
deps = ["c"]

[[target]]
name = "c"
phony = true
deps = ["a"]
`)

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	err = proj.Run(t.Context(), "a", nil)
	var cycle runner.CyclicDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "cyclic dependency on a: a -> b -> c -> a", cycle.Error())
	assert.ErrorIs(t, err, ErrDependenciesFailed)
}

func TestStageMissingArtifact(t *testing.T) {
	dir := writeProject(t, `
[[target]]
name = "target/app"
command = "true"

[[target]]
name = "build/app"
stage = { artifact = "target/app", into = "build" }
`, "build/keep")

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	err = proj.Run(t.Context(), "build/app", nil)
	var stageErr *stage.Error
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, stage.Prepare, stageErr.Step)
	assert.FileExists(t, filepath.Join(dir, "build", "keep"))
}

func TestMissingSourceForcesRebuild(t *testing.T) {
	skipWithoutPOSIX(t)

	dir := writeProject(t, `
[[target]]
name = "out"
sources = ["in.txt"]
command = "echo built >> out"
`)

	proj, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"in.txt"}, proj.Sources())

	require.NoError(t, proj.Run(t.Context(), "out", nil))
	require.NoError(t, proj.Run(t.Context(), "out", nil))
	assert.Equal(t, "built\nbuilt\n", readFile(t, filepath.Join(dir, "out")))
}

func TestProjectFlags(t *testing.T) {
	config := `
[[flag]]
name = "mode"
default = "debug"
choices = ["debug", "release"]
help = "build mode"

[[flag]]
name = "features"

[[target]]
name = "build/${mode}"
mkdir = true
`

	proj, err := Load(writeProject(t, config), &LoadOptions{Args: []string{"--mode=release", "--features", "audio"}})
	require.NoError(t, err)

	mode, err := proj.Flag("mode")
	require.NoError(t, err)
	assert.Equal(t, "release", mode.Value)
	assert.Equal(t, "debug", mode.Default)

	_, err = proj.Target("build/release")
	assert.NoError(t, err)

	_, err = Load(writeProject(t, config), &LoadOptions{Args: []string{"--mode=fast"}})
	assert.EqualError(t, err, `invalid value "fast" for flag --mode: must be one of debug, release`)

	_, err = Load(writeProject(t, config), &LoadOptions{Args: []string{"--unknown"}})
	assert.Error(t, err)

	_, err = Load(writeProject(t, config), &LoadOptions{Args: []string{"extra"}})
	assert.EqualError(t, err, "unexpected arguments: extra")
}

func TestInvalidGraphs(t *testing.T) {
	cases := []struct {
		name   string
		config string
		err    string
	}{
		{
			name: "duplicate",
			config: `
[[target]]
name = "build"
mkdir = true

[[target]]
name = "build/"
mkdir = true
`,
			err: "duplicate target build",
		},
		{
			name: "outside",
			config: `
[[target]]
name = "../out"
command = "true"
`,
			err: "target ../out: ../out is not inside the project",
		},
		{
			name: "artifact inside destination",
			config: `
[[target]]
name = "pack"
phony = true
stage = { artifact = "build/app", into = "build" }
`,
			err: "target pack: artifact build/app is inside its destination build",
		},
		{
			name: "misnamed stage",
			config: `
[[target]]
name = "build/other"
stage = { artifact = "target/app", into = "build" }
`,
			err: "target build/other: a stage target must be phony or named build/app",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(writeProject(t, c.config), nil)
			assert.EqualError(t, err, c.err)
		})
	}
}

func TestLoadMissingConfig(t *testing.T) {
	_, err := Load(t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTriggersBuild(t *testing.T) {
	dir := writeProject(t, `
[[target]]
name = "out"
sources = ["src/**/*.rs", "Cargo.toml"]
command = "true"
`, "src/main.rs", "Cargo.toml")

	events := &recordEvents{}
	proj, err := Load(dir, &LoadOptions{Events: events})
	require.NoError(t, err)

	cases := map[string]bool{
		project.ConfigFileName: true,
		"Cargo.toml":           true,
		"src/main.rs":          true,
		"src/nested/new.rs":    true,
		"README.md":            false,
		"build/out":            false,
		WorkDir + "/lock":      false,
	}
	for rel, expected := range cases {
		assert.Equal(t, expected, proj.triggersBuild(filepath.Join(proj.Root(), filepath.FromSlash(rel))), rel)
	}

	changed := events.take()
	slices.Sort(changed)
	assert.Equal(t, []string{"changed Cargo.toml", "changed cc.toml", "changed src/main.rs", "changed src/nested/new.rs"}, changed)
}
