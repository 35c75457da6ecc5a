// Package process runs the external collaborators of the pipeline: the
// project's build script, the instrumentation wrapper, the indexing engine and
// the query tools.
//
// Commands are executed directly from an argv, never through a shell. Their
// environment is always passed explicitly through Command.Env; the scribe
// process environment is neither inherited nor mutated.
package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed, so grandchildren holding the pipes cannot stall a timed-out command.
const waitDelay = 5 * time.Second

// Command describes a single subprocess invocation.
type Command struct {
	// Argv is the program followed by its arguments.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the complete environment of the subprocess (KEY=VALUE).
	Env []string
}

// Program returns the executable of the command.
func (c Command) Program() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// String renders the argv for logs and reports.
func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Runner defines the interface for executing commands.
// This allows for testing by injecting fake implementations.
type Runner interface {
	// Run executes a command and returns its output.
	Run(ctx context.Context, cmd Command) (stdout, stderr string, exitCode int, err error)
}

// LiveOutputRunner defines a runner that supports live output streaming.
type LiveOutputRunner interface {
	Runner
	// RunWithLiveOutput executes a command and streams output to the writer while also capturing it.
	RunWithLiveOutput(ctx context.Context, cmd Command, liveOut io.Writer) (stdout, stderr string, exitCode int, err error)
}

// DefaultRunner implements Runner and LiveOutputRunner using os/exec.
type DefaultRunner struct{}

// Run executes the command.
func (r *DefaultRunner) Run(ctx context.Context, cmd Command) (stdout, stderr string, exitCode int, err error) {
	return r.runCommand(ctx, cmd, nil)
}

// RunWithLiveOutput executes a command and streams output to liveOut while also capturing it.
func (r *DefaultRunner) RunWithLiveOutput(ctx context.Context, cmd Command, liveOut io.Writer) (stdout, stderr string, exitCode int, err error) {
	return r.runCommand(ctx, cmd, liveOut)
}

// runCommand executes a command with optional live output streaming.
// When ctx is done the process is killed (SIGKILL on unix).
func (r *DefaultRunner) runCommand(ctx context.Context, c Command, liveOut io.Writer) (stdout, stderr string, exitCode int, err error) {
	if len(c.Argv) == 0 {
		return "", "", -1, ErrEmptyArgv
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...) //nolint:gosec // argv comes from trusted configuration
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.WaitDelay = waitDelay

	var outBuf, errBuf bytes.Buffer
	if liveOut != nil {
		cmd.Stdout = io.MultiWriter(&outBuf, liveOut)
		cmd.Stderr = io.MultiWriter(&errBuf, liveOut)
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return stdout, stderr, exitCode, err
}

// ErrEmptyArgv is returned when a command has no program.
var ErrEmptyArgv = errors.New("command has no program")

// Ensure DefaultRunner implements Runner and LiveOutputRunner.
var (
	_ Runner           = (*DefaultRunner)(nil)
	_ LiveOutputRunner = (*DefaultRunner)(nil)
)
