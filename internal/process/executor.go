package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// DefaultTimeout is the default timeout for commands.
const DefaultTimeout = 30 * time.Minute

// Executor runs commands with a deadline and structured logging.
type Executor struct {
	runner     Runner
	timeout    time.Duration
	liveOutput io.Writer // Optional: if set, streams command output in real-time
}

// NewExecutor creates an executor with the default runner.
func NewExecutor(timeout time.Duration) *Executor {
	return NewExecutorWithRunner(timeout, &DefaultRunner{})
}

// NewExecutorWithRunner creates an executor with a custom runner (for testing).
func NewExecutorWithRunner(timeout time.Duration, runner Runner) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if runner == nil {
		runner = &DefaultRunner{}
	}
	return &Executor{
		runner:  runner,
		timeout: timeout,
	}
}

// Timeout returns the per-command deadline.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// SetLiveOutput configures the executor to stream command output in real-time.
func (e *Executor) SetLiveOutput(w io.Writer) {
	e.liveOutput = w
}

// Run executes a single command with timeout handling.
//
// A result is returned whenever the command was started. The error is
// ErrCommandTimeout when the deadline killed the process, the parent context
// error on cancellation, and ErrCommandFailed on a non-zero exit.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	log := zerolog.Ctx(ctx)

	if len(cmd.Argv) == 0 {
		return nil, fmt.Errorf("%w: empty argv", scribeerrors.ErrInvalidArgument)
	}

	if cmd.Dir != "" {
		if _, err := os.Stat(cmd.Dir); err != nil {
			log.Error().
				Str("work_dir", cmd.Dir).
				Str("command", cmd.String()).
				Msg("work directory missing before command")
			return &Result{
				Command: cmd.Argv,
				Error:   fmt.Sprintf("work directory missing: %s", cmd.Dir),
			}, fmt.Errorf("work directory missing: %s: %w", cmd.Dir, scribeerrors.ErrProjectNotFound)
		}
	}

	startTime := time.Now()
	log.Debug().
		Str("command", cmd.String()).
		Str("work_dir", cmd.Dir).
		Dur("timeout", e.timeout).
		Msg("executing command")

	cmdCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, stderr, exitCode, runErr := e.execute(cmdCtx, cmd)

	completedAt := time.Now()
	duration := completedAt.Sub(startTime)

	result := &Result{
		Command:     cmd.Argv,
		ExitCode:    exitCode,
		Stdout:      stdout,
		Stderr:      stderr,
		DurationMs:  duration.Milliseconds(),
		StartedAt:   startTime,
		CompletedAt: completedAt,
	}

	return e.handleOutcome(ctx, cmdCtx, result, cmd, duration, runErr, log)
}

func (e *Executor) execute(ctx context.Context, cmd Command) (stdout, stderr string, exitCode int, err error) {
	if e.liveOutput != nil {
		if liveRunner, ok := e.runner.(LiveOutputRunner); ok {
			return liveRunner.RunWithLiveOutput(ctx, cmd, e.liveOutput)
		}
	}
	return e.runner.Run(ctx, cmd)
}

// handleOutcome processes the result and determines success/failure.
func (e *Executor) handleOutcome(ctx, cmdCtx context.Context, result *Result, cmd Command, duration time.Duration, runErr error, log *zerolog.Logger) (*Result, error) {
	if ctx.Err() == nil && errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.Error = fmt.Sprintf("killed after %s", e.timeout)

		log.Error().
			Str("command", cmd.String()).
			Dur("duration_ms", duration).
			Str("stderr", result.StderrTail(stderrLogLimit)).
			Msg("command timed out")

		return result, fmt.Errorf("%w: %s after %s", scribeerrors.ErrCommandTimeout, cmd.Program(), e.timeout)
	}

	if ctx.Err() != nil {
		result.Error = "context canceled"
		return result, ctx.Err()
	}

	if runErr != nil || result.ExitCode != 0 {
		if runErr != nil {
			result.Error = runErr.Error()
		} else {
			result.Error = fmt.Sprintf("exit code %d", result.ExitCode)
		}

		log.Warn().
			Str("command", cmd.String()).
			Int("exit_code", result.ExitCode).
			Dur("duration_ms", duration).
			Str("stderr", result.StderrTail(stderrLogLimit)).
			Msg("command failed")

		return result, fmt.Errorf("%w: %s: %s", scribeerrors.ErrCommandFailed, cmd.Program(), result.Error)
	}

	result.Success = true

	log.Debug().
		Str("command", cmd.String()).
		Dur("duration_ms", duration).
		Msg("command completed")

	return result, nil
}

const stderrLogLimit = 4096
