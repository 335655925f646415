package cc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thismarvin/cc/internal/sh"
	"github.com/thismarvin/cc/stage"
)

// An Action is the work a target performs when it is out of date.
type Action interface {
	fmt.Stringer

	run(ctx context.Context, t *Target) error
}

// A CommandAction runs a shell command. Project variables are available to the command as
// environment variables.
type CommandAction struct {
	// Command holds the command's source.
	Command string
	// Dir holds the absolute path of the command's working directory.
	Dir string
	// Interactive is true if the command is attached directly to the terminal.
	Interactive bool
}

func (a *CommandAction) String() string {
	return a.Command
}

func (a *CommandAction) run(ctx context.Context, t *Target) error {
	proj := t.proj

	options := sh.Options{
		Dir: a.Dir,
		Env: proj.environ(t),
	}
	if a.Interactive {
		options.Stdin, options.Stdout, options.Stderr = proj.stdin, proj.stdout, proj.stderr
	} else {
		out := newLineWriter(t.name, proj.events)
		defer out.Flush()

		options.Stdout, options.Stderr = out, out
	}

	if err := sh.Exec(ctx, a.Command, options); err != nil {
		return &CommandFailedError{Target: t.name, Err: err}
	}
	return nil
}

// A MkdirAction creates its target's directory and any missing parents.
type MkdirAction struct{}

func (*MkdirAction) String() string {
	return "mkdir"
}

func (*MkdirAction) run(_ context.Context, t *Target) error {
	return os.MkdirAll(t.path, 0o755)
}

// A StageAction copies an artifact into a directory after clearing the directory's contents.
type StageAction struct {
	// Artifact holds the name of the target that produces the artifact.
	Artifact string
	// Into holds the name of the destination directory.
	Into string
}

func (a *StageAction) String() string {
	return fmt.Sprintf("stage %v into %v", a.Artifact, a.Into)
}

func (a *StageAction) run(_ context.Context, t *Target) error {
	proj := t.proj

	stager := stage.New(proj.path(a.Artifact), proj.path(a.Into))
	if err := stager.Run(); err != nil {
		return err
	}
	proj.events.Staged(t.name, a.Artifact, a.Into, stager.Size())
	return nil
}

// A CleanAction removes a directory and everything in it.
type CleanAction struct {
	// Dir holds the name of the directory to remove.
	Dir string
}

func (a *CleanAction) String() string {
	return "clean " + a.Dir
}

func (a *CleanAction) run(_ context.Context, t *Target) error {
	return stage.Clean(t.proj.path(a.Dir))
}

func (proj *Project) path(name string) string {
	return filepath.Join(proj.root, filepath.FromSlash(name))
}
