package cc

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/thismarvin/cc/runner"
)

// A PrerequisiteKind determines how a prerequisite affects the freshness of its dependent.
type PrerequisiteKind int

const (
	// A TimestampSignificant prerequisite must exist, and its dependent is rebuilt if the
	// prerequisite is newer.
	TimestampSignificant PrerequisiteKind = iota
	// An OrderOnly prerequisite must exist before its dependent is built, but its modification
	// time is ignored.
	OrderOnly
)

func (k PrerequisiteKind) String() string {
	switch k {
	case TimestampSignificant:
		return "timestamp"
	case OrderOnly:
		return "order-only"
	default:
		return fmt.Sprintf("PrerequisiteKind(%d)", int(k))
	}
}

type Prerequisite struct {
	Name string
	Kind PrerequisiteKind
}

// A Target represents a node in a project's build graph. File targets are named by their
// project-relative path; phony targets are purely symbolic and always run.
type Target struct {
	proj *Project

	name    string
	path    string
	phony   bool
	doc     string
	prereqs []Prerequisite
	action  Action
}

// Project returns the project that owns the target.
func (t *Target) Project() *Project {
	return t.proj
}

// Name returns the target's name.
func (t *Target) Name() string {
	return t.name
}

// Path returns the absolute path of the file the target produces. Phony targets have no path.
func (t *Target) Path() string {
	return t.path
}

func (t *Target) IsPhony() bool {
	return t.phony
}

// IsSource returns true if the target is a source leaf: a file that is read but never produced.
func (t *Target) IsSource() bool {
	return !t.phony && t.action == nil && len(t.prereqs) == 0
}

// Doc returns the target's help text, if any.
func (t *Target) Doc() string {
	return t.doc
}

// Prerequisites returns the target's prerequisites in declaration order.
func (t *Target) Prerequisites() []Prerequisite {
	return slices.Clone(t.prereqs)
}

// Dependencies returns the names of the target's prerequisites in declaration order.
func (t *Target) Dependencies() []string {
	names := make([]string, len(t.prereqs))
	for i, p := range t.prereqs {
		names[i] = p.Name
	}
	return names
}

// Action returns the target's action. Source leaves and some phony targets have no action.
func (t *Target) Action() Action {
	return t.action
}

func (t *Target) hasPrerequisite(name string) bool {
	return slices.ContainsFunc(t.prereqs, func(p Prerequisite) bool { return p.Name == name })
}

// runTarget implements runner.Target.
type runTarget struct {
	target *Target
}

func (t *runTarget) Evaluate(ctx context.Context, engine runner.Engine) error {
	proj, name := t.target.proj, t.target.name

	// Satisfy the target's prerequisites.
	results := engine.EvaluateTargets(ctx, t.target.Dependencies()...)
	if n := len(results); n != 0 && results[n-1].Error != nil {
		switch err := results[n-1].Error.(type) {
		case UnknownTargetError:
			// Unknown targets are never loaded, so their dependent reports them.
			err2 := fmt.Errorf("%v: %w", name, err)
			proj.events.TargetFailed(name, err2)
			return err2
		case runner.CyclicDependencyError:
			err2 := fmt.Errorf("%v: %w", name, err)
			proj.events.TargetFailed(name, err2)
			return err2
		default:
			if errors.Is(err, ErrDependenciesFailed) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrDependenciesFailed, err)
		}
	}

	// Check whether the target needs to be rebuilt.
	rebuild, reason, err := proj.needsRebuild(t.target)
	if err != nil {
		proj.events.TargetFailed(name, err)
		return err
	}
	if !rebuild && proj.always && !t.target.phony && t.target.action != nil {
		rebuild, reason = true, "always"
	}
	if !rebuild {
		proj.events.TargetUpToDate(name)
		return nil
	}

	if t.target.action == nil {
		// Nothing to do: phony groupings, and source leaves that are missing. A missing source
		// leaf causes its dependents to rebuild.
		proj.events.TargetSucceeded(name, false)
		return nil
	}

	proj.events.TargetEvaluating(name, reason)

	if proj.dryrun {
		// For dry runs, conservatively assume that the target changed.
		proj.events.TargetSucceeded(name, true)
		return nil
	}

	if err := t.target.action.run(ctx, t.target); err != nil {
		proj.events.TargetFailed(name, err)
		return err
	}
	proj.events.TargetSucceeded(name, true)
	return nil
}
