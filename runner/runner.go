package runner

import (
	"context"
	"fmt"
	"strings"
)

// A CyclicDependencyError is returned when a target transitively depends on itself.
type CyclicDependencyError string

func (e CyclicDependencyError) Error() string {
	return string(e)
}

type Result struct {
	Label  string
	Target Target
	Error  error
}

type Targets interface {
	LoadTarget(ctx context.Context, label string) (Target, error)
}

type Engine interface {
	// EvaluateTargets evaluates the given targets one at a time and in order. Evaluation stops
	// at the first failure, so the returned slice may be shorter than labels; if it is, its
	// last element holds the failure.
	EvaluateTargets(ctx context.Context, labels ...string) []Result
}

type Target interface {
	Evaluate(ctx context.Context, engine Engine) error
}

const (
	statusIdle = iota
	statusRunning
	statusSucceeded
	statusFailed
)

type target struct {
	label  string
	target Target

	status int
	err    error
}

type engine struct {
	runner *Runner
}

func (e *engine) EvaluateTargets(ctx context.Context, labels ...string) []Result {
	results := make([]Result, 0, len(labels))
	for _, label := range labels {
		t, err := e.runner.evaluate(ctx, label)
		results = append(results, Result{Label: label, Target: t.target, Error: err})
		if err != nil {
			break
		}
	}
	return results
}

// A Runner evaluates a graph of targets depth-first. Each target is evaluated at most once
// per call to Run, no matter how many paths reach it.
type Runner struct {
	targetLoader Targets

	targets map[string]*target
	stack   []*target
}

func NewRunner(targets Targets) *Runner {
	return &Runner{targetLoader: targets}
}

func (r *Runner) getTarget(label string) *target {
	if t, ok := r.targets[label]; ok {
		return t
	}
	t := &target{label: label}
	r.targets[label] = t
	return t
}

func (r *Runner) cycle(t *target) error {
	var path []string
	for i := len(r.stack) - 1; i >= 0; i-- {
		path = append(path, r.stack[i].label)
		if r.stack[i] == t {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	path = append(path, t.label)
	return CyclicDependencyError(fmt.Sprintf("cyclic dependency on %v: %v", t.label, strings.Join(path, " -> ")))
}

func (r *Runner) evaluate(ctx context.Context, label string) (*target, error) {
	t := r.getTarget(label)
	switch t.status {
	case statusSucceeded, statusFailed:
		return t, t.err
	case statusRunning:
		return t, r.cycle(t)
	}

	if err := ctx.Err(); err != nil {
		t.status, t.err = statusFailed, err
		return t, err
	}

	t.status = statusRunning
	r.stack = append(r.stack, t)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	// Load the target.
	tt, err := r.targetLoader.LoadTarget(ctx, label)
	if err != nil {
		t.status, t.err = statusFailed, err
		return t, err
	}
	t.target = tt

	// Evaluate the target.
	if err = tt.Evaluate(ctx, &engine{runner: r}); err != nil {
		t.status, t.err = statusFailed, err
		return t, err
	}
	t.status = statusSucceeded
	return t, nil
}

// Run evaluates the target with the given label and, transitively, its dependencies.
// Memoized results are discarded at the start of each run.
func (r *Runner) Run(ctx context.Context, label string) error {
	r.targets, r.stack = map[string]*target{}, nil
	_, err := r.evaluate(ctx, label)
	return err
}
