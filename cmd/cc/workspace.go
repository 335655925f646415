package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pgavlin/fx/v2"
	fxs "github.com/pgavlin/fx/v2/slices"
	"github.com/spf13/cobra"
	"github.com/thismarvin/cc"
	"github.com/thismarvin/cc/internal/project"
)

type workspace struct {
	chdir   string
	root    string
	verbose bool
	explain bool

	project  *cc.Project
	graph    graph
	renderer renderer
}

// changeDir applies the -C flag. A leading ~ refers to the user's home directory.
func (w *workspace) changeDir() error {
	if w.chdir == "" {
		return nil
	}

	dir, err := homedir.Expand(w.chdir)
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return err
	}
	w.chdir = ""
	return nil
}

func (w *workspace) init() error {
	if err := w.changeDir(); err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	rootDir := wd
	for {
		if _, err := os.Stat(filepath.Join(rootDir, project.ConfigFileName)); err == nil {
			break
		}
		parent := filepath.Dir(rootDir)
		if parent == rootDir {
			return fmt.Errorf("could not find %v in %v or any parent directory", project.ConfigFileName, wd)
		}
		rootDir = parent
	}
	w.root = rootDir
	return nil
}

// targetArg splits a command's arguments into a target name and project flags. If the first
// argument is a flag, the project's default target is used.
func (w *workspace) targetArg(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}

func (w *workspace) validTargets(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if w.root == "" {
		if err := w.init(); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
	}

	proj, err := cc.Load(w.root, &cc.LoadOptions{Events: cc.DiscardEvents})
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := slices.Collect(fxs.Map(proj.Targets(), func(t *cc.Target) string {
		if doc := t.Doc(); doc != "" {
			return fmt.Sprintf("%v\t%s", t.Name(), doc)
		}
		return t.Name()
	}))
	return names, cobra.ShellCompDirectiveNoFileComp
}

func (w *workspace) loadProject(args []string, quiet bool) error {
	renderer, err := newRenderer(w, w.verbose, quiet)
	if err != nil {
		return err
	}
	w.renderer = renderer

	proj, err := cc.Load(w.root, &cc.LoadOptions{Args: args, Events: renderer})
	if err != nil {
		return errors.Join(err, renderer.Close())
	}
	w.project = proj
	w.graph = buildGraph(proj)
	return nil
}

func (w *workspace) target(name string) (*cc.Target, error) {
	return w.project.Target(w.targetOrDefault(name))
}

func (w *workspace) targetOrDefault(name string) string {
	if name != "" {
		return name
	}
	return w.project.Default()
}

// interactive returns true if the named target's action is attached to the terminal.
func (w *workspace) interactive(name string) bool {
	if w.project == nil {
		return false
	}
	t, err := w.project.Target(name)
	if err != nil {
		return false
	}
	a, ok := t.Action().(*cc.CommandAction)
	return ok && a.Interactive
}

func (w *workspace) depends(name string) ([]string, error) {
	t, err := w.target(name)
	if err != nil {
		return nil, err
	}
	return w.graph.depends(t), nil
}

func (w *workspace) whatDepends(name string) ([]string, error) {
	t, err := w.target(name)
	if err != nil {
		return nil, err
	}
	return w.graph.whatDepends(t), nil
}

func (w *workspace) sources(name string) ([]string, error) {
	t, err := w.target(name)
	if err != nil {
		return nil, err
	}
	return slices.Collect(fx.FMap(slices.Values(w.graph.depends(t)), func(name string) (string, bool) {
		dep, err := w.project.Target(name)
		return name, err == nil && dep.IsSource()
	})), nil
}

func (w *workspace) resolve(name string) (string, error) {
	name = w.targetOrDefault(name)
	if name == "" {
		return "", fmt.Errorf("no target given and %v sets no default", project.ConfigFileName)
	}
	return name, nil
}

func (w *workspace) run(ctx context.Context, name string, opts cc.RunOptions) error {
	name, err := w.resolve(name)
	if err != nil {
		return errors.Join(err, w.renderer.Close())
	}

	err = w.project.Run(ctx, name, &opts)
	return errors.Join(err, w.renderer.Close())
}

func (w *workspace) watch(ctx context.Context, name string, opts cc.RunOptions) error {
	name, err := w.resolve(name)
	if err != nil {
		return errors.Join(err, w.renderer.Close())
	}

	// Build once up front; the watcher only rebuilds on change.
	_ = w.project.Run(ctx, name, &opts)

	err = w.project.Watch(ctx, name, &opts)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, w.renderer.Close())
}
