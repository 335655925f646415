package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// A CleanError is returned when an output tree cannot be removed.
type CleanError struct {
	Path string
	Err  error
}

func (e *CleanError) Error() string {
	return fmt.Sprintf("cleaning %v: %v", e.Path, e.Err)
}

func (e *CleanError) Unwrap() error {
	return e.Err
}

// Clean recursively removes root. Cleaning a root that does not exist succeeds.
func Clean(root string) error {
	if _, err := os.Lstat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &CleanError{Path: root, Err: err}
	}
	if err := os.RemoveAll(root); err != nil {
		return &CleanError{Path: root, Err: err}
	}
	return nil
}
