// Package stage copies built artifacts into clean output directories.
//
// Staging is a small state machine: Prepare ensures the destination exists and the artifact
// is present, Clear removes everything inside the destination, and Copy places the artifact
// in the destination with its permissions intact. Clear is destructive and not transactional:
// a failure during Copy leaves the destination empty. Callers should treat a failed stage as
// "destination may be empty" and re-run to repair it.
package stage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
)

// A Step identifies a state of a Stager.
type Step int

const (
	Prepare Step = iota
	Clear
	Copy
	Done
	Failed
)

func (s Step) String() string {
	switch s {
	case Prepare:
		return "prepare"
	case Clear:
		return "clear"
	case Copy:
		return "copy"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// An Error is returned when a stage fails. Step is the step that failed.
type Error struct {
	Step Step
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("staging failed during %v of %v: %v", e.Step, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// A Stager stages a single artifact into a destination directory.
type Stager struct {
	artifact string
	dest     string

	state  Step
	staged string
	size   int64
}

// New creates a Stager that will copy artifact into dest.
func New(artifact, dest string) *Stager {
	return &Stager{artifact: artifact, dest: dest}
}

// State returns the stager's current state.
func (s *Stager) State() Step {
	return s.state
}

// Path returns the path of the staged artifact. It is only meaningful once the stager is Done.
func (s *Stager) Path() string {
	return s.staged
}

// Size returns the size in bytes of the staged artifact.
func (s *Stager) Size() int64 {
	return s.size
}

// Run steps the stager until it is Done or Failed. Each step completes before the next begins.
func (s *Stager) Run() error {
	for s.state != Done && s.state != Failed {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step performs the current step and advances the stager. Stepping a Done or Failed stager is a
// no-op.
func (s *Stager) Step() error {
	var err error
	switch s.state {
	case Prepare:
		err = s.prepare()
	case Clear:
		err = s.clear()
	case Copy:
		err = s.copy()
	default:
		return nil
	}
	if err != nil {
		s.state = Failed
		return err
	}
	s.state++
	return nil
}

func (s *Stager) prepare() error {
	info, err := os.Stat(s.artifact)
	if err != nil {
		return &Error{Step: Prepare, Path: s.artifact, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &Error{Step: Prepare, Path: s.artifact, Err: errors.New("artifact is not a regular file")}
	}
	s.size = info.Size()

	if err := os.MkdirAll(s.dest, 0o755); err != nil {
		return &Error{Step: Prepare, Path: s.dest, Err: err}
	}
	return nil
}

func (s *Stager) clear() error {
	entries, err := os.ReadDir(s.dest)
	if err != nil {
		return &Error{Step: Clear, Path: s.dest, Err: err}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dest, e.Name())); err != nil {
			return &Error{Step: Clear, Path: s.dest, Err: err}
		}
	}
	return nil
}

func (s *Stager) copy() error {
	staged := filepath.Join(s.dest, filepath.Base(s.artifact))
	if err := copy.Copy(s.artifact, staged, copy.Options{Sync: true}); err != nil {
		return &Error{Step: Copy, Path: staged, Err: err}
	}
	s.staged = staged
	return nil
}

// Stage copies artifact into dest after removing everything dest previously contained.
func Stage(artifact, dest string) error {
	return New(artifact, dest).Run()
}
