package cc

import (
	"errors"
	"fmt"

	"github.com/thismarvin/cc/internal/sh"
)

// ErrDependenciesFailed is returned by a target whose prerequisites failed. It wraps the
// failure of the prerequisite.
var ErrDependenciesFailed = errors.New("dependencies failed")

// An UnknownTargetError is returned by Project.LoadTarget if a referenced target does not exist.
type UnknownTargetError string

func (e UnknownTargetError) Error() string {
	return string(e)
}

// A CommandFailedError is returned when a target's command fails.
type CommandFailedError struct {
	Target string
	Err    error
}

func (e *CommandFailedError) Error() string {
	if status, ok := sh.ExitStatus(e.Err); ok {
		return fmt.Sprintf("command for %v exited with status %d", e.Target, status)
	}
	return fmt.Sprintf("command for %v failed: %v", e.Target, e.Err)
}

func (e *CommandFailedError) Unwrap() error {
	return e.Err
}

// ExitStatus returns the exit status of the failed command, if it ran to completion.
func (e *CommandFailedError) ExitStatus() (int, bool) {
	return sh.ExitStatus(e.Err)
}
