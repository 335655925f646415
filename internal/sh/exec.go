// Package sh runs shell commands with a portable POSIX shell interpreter.
package sh

import (
	"context"
	"errors"
	"io"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type Options struct {
	// Dir is the command's working directory. Defaults to the process's working directory.
	Dir string
	// Env holds the command's environment as key=value pairs. If nil, the process's
	// environment is used.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Exec runs command to completion. A command that exits with a non-zero status returns an
// error for which ExitStatus reports that status.
func Exec(ctx context.Context, command string, options Options) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return err
	}

	stdout, stderr := options.Stdout, options.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runnerOptions := []interp.RunnerOption{interp.StdIO(options.Stdin, stdout, stderr)}
	if options.Dir != "" {
		runnerOptions = append(runnerOptions, interp.Dir(options.Dir))
	}
	if options.Env != nil {
		runnerOptions = append(runnerOptions, interp.Env(expand.ListEnviron(options.Env...)))
	}

	runner, err := interp.New(runnerOptions...)
	if err != nil {
		return err
	}
	return runner.Run(ctx, file)
}

// ExitStatus returns the exit status carried by err, if any.
func ExitStatus(err error) (int, bool) {
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return int(status), true
	}
	return 0, false
}
