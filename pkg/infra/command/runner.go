package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Command is one external program invocation
type Command struct {
	Dir  string
	Env  []string
	Name string
	Args []string
}

// String renders the command line for logs and diagnostics
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a command that started. A non-zero ExitCode is not
// an error of Run.
type Result struct {
	ExitCode int
	Output   string
}

// Success reports a zero exit code
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes external commands synchronously
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec, capturing combined output
type ExecRunner struct{}

// NewExecRunner creates a runner backed by the local process table
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the command and waits for it. An error is returned only when
// the program could not be started or ctx was cancelled.
func (x *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	logger := ctxlog.From(ctx)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug("Running command", "command", c.String(), "dir", c.Dir)
	err := cmd.Run()
	result := &Result{Output: out.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			logger.Debug("Command exited with non-zero status",
				"command", c.String(),
				"exit_code", result.ExitCode,
			)
			return result, nil
		}
		return nil, goerr.Wrap(err, "failed to run command",
			goerr.V("command", c.String()),
			goerr.V("dir", c.Dir),
			goerr.V("output", result.Output))
	}

	return result, nil
}

var _ Runner = (*ExecRunner)(nil)
