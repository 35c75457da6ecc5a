package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/scribe/internal/errors"
)

func TestNewOutput(t *testing.T) {
	var buf bytes.Buffer
	assert.IsType(t, &JSONOutput{}, NewOutput(&buf, FormatJSON))
	assert.IsType(t, &TTYOutput{}, NewOutput(&buf, FormatText))
	assert.IsType(t, &TTYOutput{}, NewOutput(&buf, ""))
}

func TestTTYOutput_Messages(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Success("index built")
	out.Warning("2 sources skipped")
	out.Info("queries: 3")
	out.Error(fmt.Errorf("plain failure"))

	text := buf.String()
	assert.Contains(t, text, "✓ index built")
	assert.Contains(t, text, "⚠ 2 sources skipped")
	assert.Contains(t, text, "queries: 3")
	assert.Contains(t, text, "✗ plain failure")
}

func TestTTYOutput_ActionableError(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Error(FromError(errors.Wrap(errors.ErrOutputLocked, "acquire /out")))

	text := buf.String()
	assert.Contains(t, text, "✗ Another run is writing to this output directory.")
	assert.Contains(t, text, "▸ Try: Wait for the other run")
}

func TestTTYOutput_Table(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	out := NewTTYOutput(&buf)

	out.Table(nil, nil)
	assert.Empty(t, buf.String())

	out.Table([]string{"NAME", "KIND"}, [][]string{{"casts", "unsafe-cast"}})
	text := buf.String()
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "unsafe-cast")
	assert.Contains(t, text, "╭")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	out := NewJSONOutput(&buf)

	out.Success("done")
	out.Warning("careful")
	out.Info("fyi")
	out.Error(errors.Wrap(errors.ErrIndexBuild, "engine exited 3"))
	out.Error(FromError(errors.ErrQueryFailed))
	out.Table([]string{"A"}, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)

	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &msg))
	assert.Equal(t, "success", msg["type"])
	assert.Equal(t, "done", msg["message"])

	require.NoError(t, json.Unmarshal([]byte(lines[3]), &msg))
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, errors.ErrIndexBuild.Error(), msg["details"])

	msg = map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &msg))
	assert.NotEmpty(t, msg["suggestion"])

	require.NoError(t, json.Unmarshal([]byte(lines[5]), &msg))
	assert.Equal(t, "table", msg["type"])
	assert.Equal(t, []any{}, msg["rows"])
}

func TestOutput_JSONValue(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatText} {
		var buf bytes.Buffer
		require.NoError(t, NewOutput(&buf, format).JSON(map[string]int{"entries": 8}))
		assert.JSONEq(t, `{"entries": 8}`, buf.String())
	}
}

func TestActionableError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	ae := NewActionableError("bad", "do this").WithContext("/tmp/x")
	assert.Equal(t, "bad (/tmp/x)", ae.Error())

	unknown := fmt.Errorf("something odd")
	ae = FromError(unknown)
	assert.Equal(t, "something odd", ae.Error(), "no duplicated context for unmapped errors")
	assert.ErrorIs(t, ae, unknown)

	ae = FromError(errors.Wrap(errors.ErrBuildFailed, "make exited 2"))
	assert.ErrorIs(t, ae, errors.ErrBuildFailed)
	assert.Contains(t, ae.Error(), "make exited 2")
}
