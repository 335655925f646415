package cc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pgavlin/fx/v2"
	fxs "github.com/pgavlin/fx/v2/slices"
	"github.com/rjeczalik/notify"
	"github.com/thismarvin/cc/internal/project"
	"github.com/thismarvin/cc/internal/sh"
	"github.com/thismarvin/cc/internal/spell"
	"github.com/thismarvin/cc/runner"
	"github.com/thismarvin/cc/util"
)

// WorkDir is the name of the directory that holds a project's private state.
const WorkDir = ".cc"

// ErrLocked is returned by Project.Run if another run holds the project's lock.
var ErrLocked = errors.New("project is locked by another run")

// A Project is the runtime representation of a cc project. It is the primary type used to
// introspect and execute builds.
type Project struct {
	m sync.Mutex

	args   []string
	events Events
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	root       string
	work       string
	configPath string

	config  *project.Config
	vars    map[string]string
	flags   []*Flag
	targets map[string]*Target
	order   []string
	sources *regexp.Regexp

	always bool
	dryrun bool

	runner *runner.Runner
}

type LoadOptions struct {
	// Args holds the arguments from which project flags are parsed.
	Args   []string
	Events Events

	// Stdin, Stdout, and Stderr are attached to interactive commands. They default to the
	// process's standard streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (options *LoadOptions) apply(p *Project) {
	if options != nil {
		p.args = options.Args
		p.events = options.Events
		p.stdin, p.stdout, p.stderr = options.Stdin, options.Stdout, options.Stderr
	}
	if p.events == nil {
		p.events = DiscardEvents
	}
	if p.stdin == nil {
		p.stdin = os.Stdin
	}
	if p.stdout == nil {
		p.stdout = os.Stdout
	}
	if p.stderr == nil {
		p.stderr = os.Stderr
	}
}

// Load loads the project defined by the cc.toml file in root.
func Load(root string, options *LoadOptions) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	proj := &Project{
		root:       root,
		work:       filepath.Join(root, WorkDir),
		configPath: filepath.Join(root, project.ConfigFileName),
	}
	options.apply(proj)
	proj.runner = runner.NewRunner(proj)

	if err := proj.load(); err != nil {
		return nil, err
	}
	return proj, nil
}

func (proj *Project) load() (err error) {
	defer func() {
		proj.events.LoadDone(err)
	}()

	config, err := project.LoadConfigFile(proj.configPath)
	if err != nil {
		return fmt.Errorf("%v: %w", project.ConfigFileName, err)
	}

	flags, err := parseFlags(config.Flags, proj.args)
	if err != nil {
		return err
	}

	vars := map[string]string{"name": config.Name, "version": config.Version}
	for _, f := range flags {
		vars[f.Name] = f.Value
	}

	b := &graphBuilder{proj: proj, vars: vars, targets: map[string]*Target{}}
	if err := b.build(config); err != nil {
		return err
	}

	proj.m.Lock()
	defer proj.m.Unlock()

	proj.config, proj.vars, proj.flags = config, vars, flags
	proj.targets, proj.order, proj.sources = b.targets, b.order, b.sources
	return nil
}

// Reload re-reads the project's configuration and rebuilds its graph.
func (proj *Project) Reload() error {
	return proj.load()
}

// Root returns the absolute path of the project's root directory.
func (proj *Project) Root() string {
	return proj.root
}

// ConfigPath returns the absolute path of the project's configuration file.
func (proj *Project) ConfigPath() string {
	return proj.configPath
}

func (proj *Project) Name() string {
	proj.m.Lock()
	defer proj.m.Unlock()

	return proj.config.Name
}

func (proj *Project) Version() string {
	proj.m.Lock()
	defer proj.m.Unlock()

	return proj.config.Version
}

// Default returns the name of the project's default target, if any.
func (proj *Project) Default() string {
	proj.m.Lock()
	defer proj.m.Unlock()

	return proj.config.Default
}

// Help returns the project's help entries in the order they appear in its configuration.
func (proj *Project) Help() []project.HelpEntry {
	proj.m.Lock()
	defer proj.m.Unlock()

	return slices.Clone(proj.config.Help)
}

// Flags returns the project's flags in declaration order.
func (proj *Project) Flags() []*Flag {
	proj.m.Lock()
	defer proj.m.Unlock()

	return slices.Clone(proj.flags)
}

func (proj *Project) Flag(name string) (*Flag, error) {
	proj.m.Lock()
	defer proj.m.Unlock()

	i := slices.IndexFunc(proj.flags, func(f *Flag) bool { return f.Name == name })
	if i == -1 {
		return nil, fmt.Errorf("unknown flag %v", name)
	}
	return proj.flags[i], nil
}

// Target returns the target with the given name.
func (proj *Project) Target(name string) (*Target, error) {
	proj.m.Lock()
	defer proj.m.Unlock()

	t, ok := proj.targets[normalize(name)]
	if !ok {
		return nil, proj.unknownTarget(name)
	}
	return t, nil
}

// Targets returns the project's declared targets in declaration order. Source leaves are not
// included.
func (proj *Project) Targets() []*Target {
	proj.m.Lock()
	defer proj.m.Unlock()

	return slices.Collect(fxs.Map(proj.order, func(name string) *Target { return proj.targets[name] }))
}

// Sources returns the sorted names of the project's source leaves.
func (proj *Project) Sources() []string {
	proj.m.Lock()
	defer proj.m.Unlock()

	return slices.Sorted(fx.FMap(maps.Values(proj.targets), func(t *Target) (string, bool) {
		return t.name, t.IsSource()
	}))
}

// LoadTarget implements runner.Targets.
func (proj *Project) LoadTarget(_ context.Context, name string) (runner.Target, error) {
	proj.m.Lock()
	defer proj.m.Unlock()

	t, ok := proj.targets[name]
	if !ok {
		return nil, proj.unknownTarget(name)
	}
	return &runTarget{target: t}, nil
}

// NOTE: proj.m must be held!
func (proj *Project) unknownTarget(name string) error {
	if nearest := spell.Nearest(name, proj.order); nearest != "" {
		return UnknownTargetError(fmt.Sprintf("unknown target %v; did you mean %v?", name, nearest))
	}
	return UnknownTargetError(fmt.Sprintf("unknown target %v", name))
}

type RunOptions struct {
	// Always treats every file target with an action as out of date.
	Always bool
	// DryRun reports the targets that would run without running them.
	DryRun bool
	// Lock holds an advisory lock on the project for the duration of the run.
	Lock bool
}

func (opts *RunOptions) apply(proj *Project) {
	if opts == nil {
		proj.always = false
		proj.dryrun = false
		return
	}

	proj.always = opts.Always
	proj.dryrun = opts.DryRun
}

// Run brings the named target up to date. Prerequisites are satisfied depth-first in
// declaration order, and the run stops at the first failure.
func (proj *Project) Run(ctx context.Context, name string, options *RunOptions) (err error) {
	defer func() {
		proj.events.RunDone(err)
	}()

	options.apply(proj)

	if options != nil && options.Lock {
		unlock, err := proj.lock()
		if err != nil {
			return err
		}
		defer unlock()
	}

	return proj.runner.Run(ctx, normalize(name))
}

func (proj *Project) lock() (func(), error) {
	if err := os.MkdirAll(proj.work, 0o750); err != nil {
		return nil, err
	}

	path := filepath.Join(proj.work, "lock")
	l := flock.New(path)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %v: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%v)", ErrLocked, path)
	}
	return func() { _ = l.Unlock() }, nil
}

// Watch runs the named target each time the project's configuration or one of its sources
// changes. Builds are rate-limited to one every 500ms. Watch returns when ctx is canceled.
func (proj *Project) Watch(ctx context.Context, name string, options *RunOptions) error {
	events := make(chan notify.EventInfo, 1000)
	if err := notify.Watch(filepath.Join(proj.root, "..."), events, notify.All); err != nil {
		return err
	}
	defer notify.Stop(events)

	builds := make(chan struct{}, 1)
	buildsDone := make(chan struct{})
	go func() {
		defer close(buildsDone)

		for range builds {
			if err := proj.Reload(); err != nil {
				// Project's load events are responsible for logging the error.
				continue
			}

			// Project's run events are responsible for logging the error.
			_ = proj.Run(ctx, name, options)
		}
	}()
	defer func() {
		close(builds)
		<-buildsDone
	}()

	dirty := false
	rate := time.NewTicker(500 * time.Millisecond)
	defer rate.Stop()
	for {
		select {
		case event := <-events:
			if proj.triggersBuild(event.Path()) {
				dirty = true
			}

		case <-rate.C:
			if dirty {
				select {
				case builds <- struct{}{}:
					dirty = false
				default:
					// A build is already pending.
				}
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (proj *Project) triggersBuild(p string) bool {
	rel, err := filepath.Rel(proj.root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == WorkDir || strings.HasPrefix(rel, WorkDir+"/") {
		return false
	}

	proj.m.Lock()
	watched := rel == project.ConfigFileName || proj.sources != nil && proj.sources.MatchString(rel)
	if t, ok := proj.targets[rel]; ok && t.IsSource() {
		watched = true
	}
	proj.m.Unlock()

	if watched {
		proj.events.FileChanged(rel)
	}
	return watched
}

// environ returns the environment for a target's command: the process's environment plus the
// project's variables.
func (proj *Project) environ(t *Target) []string {
	proj.m.Lock()
	defer proj.m.Unlock()

	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(proj.vars)) {
		env = append(env, k+"="+proj.vars[k])
	}
	return append(env,
		"CC_PROJECT="+proj.config.Name,
		"CC_ROOT="+proj.root,
		"CC_TARGET="+t.name,
	)
}

func normalize(name string) string {
	if name == "" {
		return name
	}
	return path.Clean(filepath.ToSlash(name))
}

// graphBuilder builds a project's target graph from its configuration.
type graphBuilder struct {
	proj *Project
	vars map[string]string

	targets  map[string]*Target
	order    []string
	patterns []string
	sources  *regexp.Regexp
}

func (b *graphBuilder) expand(s string) (string, error) {
	return sh.Expand(s, func(name string) (string, bool) {
		if v, ok := b.vars[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	})
}

// name expands and normalizes a target name. Names must refer to paths inside the project.
func (b *graphBuilder) name(raw string) (string, error) {
	s, err := b.expand(raw)
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", raw, err)
	}
	if s == "" {
		return "", fmt.Errorf("%q expands to the empty string", raw)
	}

	name := normalize(s)
	if err := checkInside(name); err != nil || filepath.IsAbs(s) {
		return "", fmt.Errorf("%v is not inside the project", s)
	}
	return name, nil
}

func checkInside(name string) error {
	if name == "." || name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
		return fmt.Errorf("%v is not inside the project", name)
	}
	return nil
}

func (b *graphBuilder) build(config *project.Config) error {
	docs := map[string]string{}
	for _, h := range config.Help {
		if _, ok := docs[h.Name]; !ok {
			docs[h.Name] = h.Description
		}
	}

	var errs []error
	sources := map[*Target][]string{}
	stages := map[*Target]*StageAction{}
	for _, c := range config.Targets {
		t, srcs, err := b.newTarget(c, docs)
		if err != nil {
			errs = append(errs, fmt.Errorf("target %v: %w", c.Name, err))
			continue
		}
		if _, ok := b.targets[t.name]; ok {
			errs = append(errs, fmt.Errorf("duplicate target %v", t.name))
			continue
		}
		b.targets[t.name], b.order = t, append(b.order, t.name)
		sources[t] = srcs
		if stage, ok := t.action.(*StageAction); ok {
			stages[t] = stage
		}
	}
	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	// A stage waits for its destination directory to exist when the project knows how to
	// create it.
	for _, name := range b.order {
		t := b.targets[name]
		if stage, ok := stages[t]; ok {
			if _, ok := b.targets[stage.Into]; ok && !t.hasPrerequisite(stage.Into) {
				t.prereqs = append(t.prereqs, Prerequisite{Name: stage.Into, Kind: OrderOnly})
			}
		}
	}

	// Register source leaves once every declared target is known.
	for _, name := range b.order {
		t := b.targets[name]
		for _, src := range sources[t] {
			if !t.hasPrerequisite(src) {
				t.prereqs = append(t.prereqs, Prerequisite{Name: src, Kind: TimestampSignificant})
			}
			if _, ok := b.targets[src]; !ok {
				b.targets[src] = &Target{proj: b.proj, name: src, path: b.proj.path(src)}
			}
		}
	}

	if len(b.patterns) != 0 {
		re, err := util.CompileGlobs(b.patterns)
		if err != nil {
			return err
		}
		b.sources = re
	}
	return nil
}

func (b *graphBuilder) newTarget(c project.TargetConfig, docs map[string]string) (*Target, []string, error) {
	name, err := b.name(c.Name)
	if err != nil {
		return nil, nil, err
	}

	t := &Target{proj: b.proj, name: name, phony: c.Phony}
	if !t.phony {
		t.path = b.proj.path(name)
	}
	if doc, ok := docs[name]; ok {
		t.doc = doc
	} else {
		t.doc = docs[c.Name]
	}

	addPrereqs := func(names []string, kind PrerequisiteKind) error {
		for _, raw := range names {
			dep, err := b.name(raw)
			if err != nil {
				return err
			}
			if !t.hasPrerequisite(dep) {
				t.prereqs = append(t.prereqs, Prerequisite{Name: dep, Kind: kind})
			}
		}
		return nil
	}
	if err := addPrereqs(c.Deps, TimestampSignificant); err != nil {
		return nil, nil, err
	}
	if err := addPrereqs(c.OrderOnly, OrderOnly); err != nil {
		return nil, nil, err
	}

	switch {
	case c.Command != "":
		dir := b.proj.root
		if c.Dir != "" {
			d, err := b.name(c.Dir)
			if err != nil {
				return nil, nil, err
			}
			dir = b.proj.path(d)
		}
		t.action = &CommandAction{Command: c.Command, Dir: dir, Interactive: c.Interactive}

	case c.Mkdir:
		t.action = &MkdirAction{}

	case c.Stage != nil:
		artifact, err := b.name(c.Stage.Artifact)
		if err != nil {
			return nil, nil, err
		}
		into, err := b.name(c.Stage.Into)
		if err != nil {
			return nil, nil, err
		}
		if artifact == into || strings.HasPrefix(artifact, into+"/") {
			return nil, nil, fmt.Errorf("artifact %v is inside its destination %v", artifact, into)
		}
		if staged := path.Join(into, path.Base(artifact)); !t.phony && name != staged {
			return nil, nil, fmt.Errorf("a stage target must be phony or named %v", staged)
		}
		if !t.hasPrerequisite(artifact) {
			t.prereqs = append(t.prereqs, Prerequisite{Name: artifact, Kind: TimestampSignificant})
		}
		t.action = &StageAction{Artifact: artifact, Into: into}

	case c.Clean != "":
		dir, err := b.name(c.Clean)
		if err != nil {
			return nil, nil, err
		}
		if dir == WorkDir {
			return nil, nil, fmt.Errorf("refusing to clean %v", WorkDir)
		}
		t.action = &CleanAction{Dir: dir}
	}

	if len(c.Sources) == 0 {
		return t, nil, nil
	}

	patterns := make([]string, len(c.Sources))
	for i, raw := range c.Sources {
		s, err := b.expand(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("expanding %q: %w", raw, err)
		}
		patterns[i] = path.Clean(filepath.ToSlash(s))
	}
	b.patterns = append(b.patterns, patterns...)

	srcs, err := util.Glob(b.proj.root, patterns, func(rel string) bool {
		return rel == WorkDir || rel == ".git"
	})
	if err != nil {
		return nil, nil, err
	}
	for _, src := range srcs {
		if err := checkInside(src); err != nil {
			return nil, nil, err
		}
	}
	return t, srcs, nil
}
