package export

import (
	"fmt"
)

// MissingInputError is returned when the source volume of a step does not exist.
// The remaining steps of the session are not run.
type MissingInputError struct {
	Step string
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("step %s: missing input %s", e.Step, e.Path)
}

// FilesystemError is returned when a directory cannot be listed or an output cannot be moved in place.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

func (e *FilesystemError) Cause() error { return e.Err }
