package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// testError is a custom error type used to test default branches
// in UserMessage and Actionable without matching any sentinel.
type testError struct {
	msg string
}

func (e testError) Error() string {
	return e.msg
}

func TestSentinelErrors_Messages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ErrToolchainQuery", scribeerrors.ErrToolchainQuery, "toolchain query failed"},
		{"ErrBuildFailed", scribeerrors.ErrBuildFailed, "build failed"},
		{"ErrInstrumentation", scribeerrors.ErrInstrumentation, "instrumentation failed"},
		{"ErrIndexBuild", scribeerrors.ErrIndexBuild, "index build failed"},
		{"ErrQueryFailed", scribeerrors.ErrQueryFailed, "query failed"},
		{"ErrCommandTimeout", scribeerrors.ErrCommandTimeout, "command timeout exceeded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		assert.NoError(t, scribeerrors.Wrap(nil, "context"))
		assert.NoError(t, scribeerrors.Wrapf(nil, "context %d", 1))
	})

	t.Run("preserves sentinel chain", func(t *testing.T) {
		err := scribeerrors.Wrap(scribeerrors.ErrBuildFailed, "gate")
		require.Error(t, err)
		assert.Equal(t, "gate: build failed", err.Error())
		assert.ErrorIs(t, err, scribeerrors.ErrBuildFailed)
	})

	t.Run("wrapf formats message", func(t *testing.T) {
		err := scribeerrors.Wrapf(scribeerrors.ErrQueryFailed, "query %s", "casts")
		assert.Equal(t, "query casts: query failed", err.Error())
		assert.ErrorIs(t, err, scribeerrors.ErrQueryFailed)
	})

	t.Run("wrapsf puts sentinel first", func(t *testing.T) {
		err := scribeerrors.Wrapsf(scribeerrors.ErrIndexBuild, "%d valid entries", 0)
		assert.Equal(t, "index build failed: 0 valid entries", err.Error())
		assert.ErrorIs(t, err, scribeerrors.ErrIndexBuild)
	})
}

func TestUserMessage(t *testing.T) {
	t.Run("nil returns empty", func(t *testing.T) {
		assert.Empty(t, scribeerrors.UserMessage(nil))
	})

	t.Run("direct sentinel", func(t *testing.T) {
		assert.Contains(t, scribeerrors.UserMessage(scribeerrors.ErrBuildFailed), "without instrumentation")
	})

	t.Run("wrapped sentinel", func(t *testing.T) {
		err := fmt.Errorf("stage build: %w", scribeerrors.ErrInstrumentation)
		assert.Contains(t, scribeerrors.UserMessage(err), "Build outputs were kept")
	})

	t.Run("unknown error falls back to message", func(t *testing.T) {
		assert.Equal(t, "boom", scribeerrors.UserMessage(testError{msg: "boom"}))
	})
}

func TestActionable(t *testing.T) {
	msg, action := scribeerrors.Actionable(scribeerrors.ErrCommandTimeout)
	assert.NotEmpty(t, msg)
	assert.Contains(t, action, "timeout")

	msg, action = scribeerrors.Actionable(nil)
	assert.Empty(t, msg)
	assert.Empty(t, action)

	msg, action = scribeerrors.Actionable(testError{msg: "custom"})
	assert.Equal(t, "custom", msg)
	assert.Empty(t, action)
}

func TestExitCode2Error(t *testing.T) {
	inner := stderrors.New("bad flag")
	err := scribeerrors.NewExitCode2Error(inner)

	assert.True(t, scribeerrors.IsExitCode2Error(err))
	assert.True(t, scribeerrors.IsExitCode2Error(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, scribeerrors.IsExitCode2Error(inner))
	assert.Equal(t, "bad flag", err.Error())
	assert.ErrorIs(t, err, inner)
}
