package cc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const freshnessConfig = `
[[target]]
name = "all"
phony = true
deps = ["out"]

[[target]]
name = "out"
sources = ["in.txt"]
deps = ["all-inputs"]
order_only = ["dir"]
command = "true"

[[target]]
name = "all-inputs"
phony = true

[[target]]
name = "dir"
mkdir = true
`

type freshnessFixture struct {
	dir  string
	proj *Project
	out  *Target
	base time.Time
}

func newFreshnessFixture(t *testing.T) *freshnessFixture {
	dir := writeProject(t, freshnessConfig)

	proj, err := Load(dir, nil)
	require.NoError(t, err)

	out, err := proj.Target("out")
	require.NoError(t, err)
	require.Equal(t, []Prerequisite{
		{Name: "all-inputs", Kind: TimestampSignificant},
		{Name: "dir", Kind: OrderOnly},
		{Name: "in.txt", Kind: TimestampSignificant},
	}, out.Prerequisites())

	return &freshnessFixture{dir: dir, proj: proj, out: out, base: time.Now().Add(-time.Hour).Truncate(time.Second)}
}

// set creates or removes the named file. Present files get a modification time offset from
// the fixture's base time.
func (f *freshnessFixture) set(t require.TestingT, name string, present bool, offset time.Duration) {
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.RemoveAll(path))
	if !present {
		return
	}

	if name == "dir" {
		require.NoError(t, os.Mkdir(path, 0o755))
	} else {
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}
	mtime := f.base.Add(offset)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestFreshness(t *testing.T) {
	f := newFreshnessFixture(t)

	cases := []struct {
		name                 string
		out, in, dir         bool
		outAt, inAt, dirAt   time.Duration
		expected             bool
		expectedReasonPrefix string
	}{
		{name: "missing output", out: false, in: true, dir: true, expected: true, expectedReasonPrefix: "missing output"},
		{name: "missing source", out: true, in: false, dir: true, expected: true, expectedReasonPrefix: "missing prerequisite in.txt"},
		{name: "missing order-only", out: true, in: true, dir: false, expected: true, expectedReasonPrefix: "missing prerequisite dir"},
		{name: "newer source", out: true, in: true, dir: true, inAt: time.Second, expected: true, expectedReasonPrefix: "in.txt is newer"},
		{name: "same age", out: true, in: true, dir: true, expected: false},
		{name: "older source", out: true, in: true, dir: true, inAt: -time.Second, expected: false},
		{name: "newer order-only", out: true, in: true, dir: true, dirAt: time.Hour, expected: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f.set(t, "out", c.out, c.outAt)
			f.set(t, "in.txt", c.in, c.inAt)
			f.set(t, "dir", c.dir, c.dirAt)

			rebuild, reason, err := f.proj.needsRebuild(f.out)
			require.NoError(t, err)
			assert.Equal(t, c.expected, rebuild)
			assert.Equal(t, c.expectedReasonPrefix, reason)
		})
	}
}

func TestFreshnessPhony(t *testing.T) {
	f := newFreshnessFixture(t)

	all, err := f.proj.Target("all")
	require.NoError(t, err)

	rebuild, reason, err := f.proj.needsRebuild(all)
	require.NoError(t, err)
	assert.True(t, rebuild)
	assert.Equal(t, "phony", reason)
}

func TestFreshnessProperties(t *testing.T) {
	f := newFreshnessFixture(t)

	rapid.Check(t, func(rt *rapid.T) {
		out := rapid.Bool().Draw(rt, "out")
		in := rapid.Bool().Draw(rt, "in")
		dir := rapid.Bool().Draw(rt, "dir")
		outAt := time.Duration(rapid.IntRange(-100, 100).Draw(rt, "outAt")) * time.Second
		inAt := time.Duration(rapid.IntRange(-100, 100).Draw(rt, "inAt")) * time.Second
		dirAt := time.Duration(rapid.IntRange(-100, 100).Draw(rt, "dirAt")) * time.Second

		f.set(rt, "out", out, outAt)
		f.set(rt, "in.txt", in, inAt)
		f.set(rt, "dir", dir, dirAt)

		rebuild, _, err := f.proj.needsRebuild(f.out)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		// Existence of every file prerequisite is required; only the timestamp-significant
		// source's age matters.
		expected := !out || !in || !dir || inAt > outAt
		if rebuild != expected {
			rt.Fatalf("out=%v@%v in=%v@%v dir=%v@%v: expected rebuild=%v, got %v", out, outAt, in, inAt, dir, dirAt, expected, rebuild)
		}
	})
}

func TestFreshnessStageStrayEntries(t *testing.T) {
	dir := writeProject(t, `
[[target]]
name = "out"
command = "true"

[[target]]
name = "dist"
mkdir = true

[[target]]
name = "dist/out"
stage = { artifact = "out", into = "dist" }
`)

	proj, err := Load(dir, nil)
	require.NoError(t, err)
	staged, err := proj.Target("dist/out")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dist"), 0o755))
	for name, mtime := range map[string]time.Time{"out": base, "dist/out": base.Add(time.Second)} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	rebuild, _, err := proj.needsRebuild(staged)
	require.NoError(t, err)
	assert.False(t, rebuild)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "dist", "extra"), 0o755))

	rebuild, reason, err := proj.needsRebuild(staged)
	require.NoError(t, err)
	assert.True(t, rebuild)
	assert.Equal(t, "dist holds stray entry extra", reason)
}
