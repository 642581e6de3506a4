package command

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/errors"
)

// Runner runs a command and returns its combined standard output and error.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecutionError is returned when a command cannot be started, exits with a non-zero status or does not produce
// what it was asked to. ExitCode is -1 when the process did not exit on its own.
type ExecutionError struct {
	Command  Command
	ExitCode int
	Output   []byte
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s exited with status %d", e.Command.Program, e.ExitCode)
	}

	return fmt.Sprintf("%s: %v", e.Command.Program, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Cause() error { return e.Err }

// ExecRunner runs commands as child processes. The process is killed when the context is done.
type ExecRunner struct {
	// Env is appended to the environment of the current process.
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if cmd.Program == "" {
		return nil, errors.New("command program must be set")
	}

	proc := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	if len(r.Env) > 0 {
		proc.Env = append(proc.Environ(), r.Env...)
	}

	output, err := proc.CombinedOutput()
	if err != nil {
		execErr := &ExecutionError{
			Command:  cmd,
			ExitCode: -1,
			Output:   output,
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			execErr.Err = errors.Wrap(ctxErr, err.Error())
		}

		return output, execErr
	}

	return output, nil
}

var _ Runner = ExecRunner{}
