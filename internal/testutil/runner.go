package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/process"
)

// FakeResponse is the scripted result of a fake command.
type FakeResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	Delay    time.Duration
}

// FakeHandler computes a response for a command. Handlers may write files
// to simulate collaborators that produce outputs.
type FakeHandler func(cmd process.Command) FakeResponse

// FakeRunner is a process.Runner that dispatches on the base name of the
// program. It records every call and is safe for concurrent use.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]FakeHandler
	calls    []process.Command
}

// NewFakeRunner creates an empty fake runner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]FakeHandler)}
}

// On registers a handler for a program.
func (f *FakeRunner) On(program string, h FakeHandler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[filepath.Base(program)] = h
	return f
}

// Respond registers a fixed response for a program.
func (f *FakeRunner) Respond(program string, resp FakeResponse) *FakeRunner {
	return f.On(program, func(process.Command) FakeResponse { return resp })
}

// Run implements process.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd process.Command) (string, string, int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h, ok := f.handlers[filepath.Base(cmd.Program())]
	f.mu.Unlock()

	if !ok {
		return "", "", 127, fmt.Errorf("%s: %w", cmd.Program(), scribeerrors.ErrCommandNotConfigured)
	}

	resp := h(cmd)
	if resp.Delay > 0 {
		select {
		case <-ctx.Done():
			return resp.Stdout, resp.Stderr, -1, ctx.Err()
		case <-time.After(resp.Delay):
		}
	}

	err := resp.Err
	if err == nil && resp.ExitCode != 0 {
		err = fmt.Errorf("exit status %d", resp.ExitCode) //nolint:err113 // mirrors exec.ExitError text
	}
	return resp.Stdout, resp.Stderr, resp.ExitCode, err
}

// Calls returns a copy of every recorded command.
func (f *FakeRunner) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]process.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns the recorded commands for one program.
func (f *FakeRunner) CallsTo(program string) []process.Command {
	var out []process.Command
	for _, c := range f.Calls() {
		if filepath.Base(c.Program()) == filepath.Base(program) {
			out = append(out, c)
		}
	}
	return out
}

var _ process.Runner = (*FakeRunner)(nil)
