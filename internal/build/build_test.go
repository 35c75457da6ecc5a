package build_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/scribe/internal/build"
	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/process"
	"github.com/mrz1836/scribe/internal/testutil"
)

const journalVar = "SCRIBE_SHIM_JOURNAL"

func testCtx() context.Context {
	logger := zerolog.Nop()
	return logger.WithContext(context.Background())
}

func testSnapshot() *domain.EnvironmentSnapshot {
	return &domain.EnvironmentSnapshot{
		Compiler:  "clang++",
		Variables: []domain.EnvVar{{Name: "PATH", Value: "/usr/bin"}, {Name: "CC", Value: "clang"}},
		SearchPaths: domain.SearchPaths{
			ResourceDir:  "/usr/lib/clang/18",
			IncludePaths: []string{"/usr/include"},
		},
	}
}

func testSettings(t *testing.T) build.Settings {
	t.Helper()
	out := t.TempDir()
	return build.Settings{
		ProjectDir:     t.TempDir(),
		Command:        []string{"make"},
		JobsArgs:       []string{"-j", "{jobs}"},
		PrimaryWrapper: []string{"bear", "--output", "{record}", "--action", "{action}", "--"},
		PrimaryAction:  "record",
		ShimCC:         "/opt/scribe/shim-cc",
		ShimCXX:        "/opt/scribe/shim-c++",
		ShimJournalVar: journalVar,
		RecordPath:     filepath.Join(out, constants.RecordFileName),
		StagingDir:     filepath.Join(out, "staging"),
	}
}

func writeJournal(t *testing.T, path string, n int) {
	t.Helper()
	entries := make([]domain.CompileEntry, 0, n)
	for i := range n {
		file := "src" + string(rune('a'+i)) + ".cc"
		entries = append(entries, domain.CompileEntry{Directory: "/src", File: file, Arguments: []string{"clang++", "-c", file}})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func argAfter(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

func envValue(env []string, name string) string {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, name+"="); ok {
			return v
		}
	}
	return ""
}

func newOrchestrator(settings build.Settings, runner process.Runner) *build.Orchestrator {
	return build.NewOrchestrator(settings, testSnapshot(), process.NewExecutorWithRunner(time.Minute, runner),
		clock.NewStepping(time.Unix(1000, 0), 250*time.Millisecond))
}

// projectRunner simulates a project whose make succeeds. Shimmed builds write
// shimEntries entries; the primary wrapper writes primaryEntries or fails.
func projectRunner(t *testing.T, gateOK bool, primary testutil.FakeResponse, primaryEntries, shimEntries int) *testutil.FakeRunner {
	return testutil.NewFakeRunner().
		On("make", func(cmd process.Command) testutil.FakeResponse {
			if journal := envValue(cmd.Env, journalVar); journal != "" {
				if shimEntries >= 0 {
					writeJournal(t, journal, shimEntries)
				}
				return testutil.FakeResponse{}
			}
			if !gateOK {
				return testutil.FakeResponse{ExitCode: 2, Stderr: "undefined reference to main"}
			}
			return testutil.FakeResponse{}
		}).
		On("bear", func(cmd process.Command) testutil.FakeResponse {
			if primary.ExitCode == 0 && primaryEntries >= 0 {
				writeJournal(t, argAfter(cmd.Argv, "--output"), primaryEntries)
			}
			return primary
		})
}

func TestExecute_GateFailureStopsPipeline(t *testing.T) {
	runner := projectRunner(t, false, testutil.FakeResponse{}, 3, 3)

	out, err := newOrchestrator(testSettings(t), runner).Execute(testCtx(), 4)

	require.ErrorIs(t, err, scribeerrors.ErrBuildFailed)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, constants.BuildModeUninstrumented, out.Attempts[0].Mode)
	assert.Equal(t, 2, out.Attempts[0].ExitCode)
	assert.Contains(t, out.Attempts[0].Stderr, "undefined reference")
	assert.False(t, out.GatePassed)
	assert.Empty(t, runner.CallsTo("bear"), "no instrumented attempt after gate failure")
}

func TestExecute_PrimarySuccess(t *testing.T) {
	settings := testSettings(t)
	runner := projectRunner(t, true, testutil.FakeResponse{}, 5, -1)

	out, err := newOrchestrator(settings, runner).Execute(testCtx(), 8)
	require.NoError(t, err)

	require.Len(t, out.Attempts, 2)
	assert.True(t, out.GatePassed)
	assert.Equal(t, constants.StrategyPrimary, out.Strategy)
	assert.Empty(t, out.FallbackState)
	require.NotNil(t, out.Record)
	assert.Equal(t, 5, out.Record.Len())
	assert.Equal(t, settings.RecordPath, out.Attempts[1].RecordPath)
	assert.FileExists(t, settings.RecordPath)
	assert.Equal(t, 500*time.Millisecond, out.Elapsed())

	gate := runner.CallsTo("make")
	require.Len(t, gate, 1)
	assert.Equal(t, []string{"make", "-j", "8"}, gate[0].Argv)
	assert.Equal(t, testSnapshot().Environ(), gate[0].Env)
	assert.Equal(t, settings.ProjectDir, gate[0].Dir)

	wrapped := runner.CallsTo("bear")
	require.Len(t, wrapped, 1)
	assert.Equal(t, "record", argAfter(wrapped[0].Argv, "--action"))
	assert.Equal(t, []string{"--", "make", "-j", "8"}, wrapped[0].Argv[len(wrapped[0].Argv)-4:])
}

func TestExecute_WrapperCannotFindCompilerRecovers(t *testing.T) {
	settings := testSettings(t)
	runner := projectRunner(t, true, testutil.FakeResponse{ExitCode: 1, Stderr: "bear: clang++: not found"}, -1, 7)

	out, err := newOrchestrator(settings, runner).Execute(testCtx(), 2)
	require.NoError(t, err)

	require.Len(t, out.Attempts, 3)
	assert.Equal(t, constants.StrategyShim, out.Strategy)
	assert.Equal(t, constants.FallbackStateRecovered, out.FallbackState)
	require.Len(t, out.Transitions, 2)
	assert.Contains(t, out.Transitions[0].Reason, "exit status 1")
	assert.Equal(t, 7, out.Record.Len())

	makes := runner.CallsTo("make")
	require.Len(t, makes, 2)
	shim := makes[1]
	assert.Equal(t, settings.ShimCC, envValue(shim.Env, "CC"))
	assert.Equal(t, settings.ShimCXX, envValue(shim.Env, "CXX"))
	assert.Equal(t, "/usr/bin", envValue(shim.Env, "PATH"))
}

func TestExecute_EmptyPrimaryRecordFallsBack(t *testing.T) {
	runner := projectRunner(t, true, testutil.FakeResponse{}, 0, 4)

	out, err := newOrchestrator(testSettings(t), runner).Execute(testCtx(), 1)
	require.NoError(t, err)
	assert.Equal(t, constants.FallbackStateRecovered, out.FallbackState)
	assert.Equal(t, scribeerrors.ErrEmptyRecord.Error(), out.Attempts[1].Error)
	assert.Equal(t, 4, out.Record.Len())
}

func TestExecute_BothStrategiesFail(t *testing.T) {
	settings := testSettings(t)
	// stale record from an earlier run must not survive
	require.NoError(t, os.WriteFile(settings.RecordPath, []byte(`[{"file":"old.c","arguments":["cc"]}]`), 0o600))

	runner := projectRunner(t, true, testutil.FakeResponse{ExitCode: 1}, -1, 0)

	out, err := newOrchestrator(settings, runner).Execute(testCtx(), 4)

	require.ErrorIs(t, err, scribeerrors.ErrInstrumentation)
	assert.True(t, out.GatePassed, "gate outputs are reported as preserved")
	assert.Equal(t, constants.FallbackStateExhausted, out.FallbackState)
	assert.Nil(t, out.Record)
	assert.Len(t, out.Attempts, 3)
	assert.NoFileExists(t, settings.RecordPath)

	// bounded retry: one primary, one shim
	assert.Len(t, runner.CallsTo("bear"), 1)
	assert.Len(t, runner.CallsTo("make"), 2)
}

func TestExecute_NoShimConfigured(t *testing.T) {
	settings := testSettings(t)
	settings.ShimCC = ""
	settings.ShimCXX = ""
	runner := projectRunner(t, true, testutil.FakeResponse{ExitCode: 1}, -1, 3)

	out, err := newOrchestrator(settings, runner).Execute(testCtx(), 4)
	require.ErrorIs(t, err, scribeerrors.ErrInstrumentation)
	assert.Len(t, out.Attempts, 2)
	assert.Equal(t, constants.FallbackStateExhausted, out.FallbackState)
	assert.Len(t, runner.CallsTo("make"), 1)
}

func TestExecute_GateTimeout(t *testing.T) {
	runner := testutil.NewFakeRunner().Respond("make", testutil.FakeResponse{Delay: time.Second})
	orch := build.NewOrchestrator(testSettings(t), testSnapshot(), process.NewExecutorWithRunner(20*time.Millisecond, runner), nil)

	out, err := orch.Execute(testCtx(), 1)
	require.ErrorIs(t, err, scribeerrors.ErrBuildFailed)
	require.ErrorIs(t, err, scribeerrors.ErrCommandTimeout)
	assert.True(t, out.Attempts[0].TimedOut)
}

func TestRunStrategy_Validation(t *testing.T) {
	orch := newOrchestrator(testSettings(t), testutil.NewFakeRunner())

	_, err := orch.RunStrategy(testCtx(), constants.StrategyDirect, 0)
	require.ErrorIs(t, err, scribeerrors.ErrInvalidArgument)

	_, err = orch.RunStrategy(testCtx(), constants.RecordingStrategy("magic"), 1)
	require.ErrorIs(t, err, scribeerrors.ErrInvalidArgument)

	settings := testSettings(t)
	settings.Command = nil
	_, err = newOrchestrator(settings, testutil.NewFakeRunner()).RunBuild(testCtx(), constants.BuildModeUninstrumented, 1)
	require.ErrorIs(t, err, scribeerrors.ErrEmptyValue)

	ctx, cancel := context.WithCancel(testCtx())
	cancel()
	_, err = orch.RunBuild(ctx, constants.BuildModeInstrumented, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunStrategy_CorruptedJournal(t *testing.T) {
	runner := testutil.NewFakeRunner().On("bear", func(cmd process.Command) testutil.FakeResponse {
		_ = os.WriteFile(argAfter(cmd.Argv, "--output"), []byte("{{"), 0o600)
		return testutil.FakeResponse{}
	})

	attempt, err := newOrchestrator(testSettings(t), runner).RunStrategy(testCtx(), constants.StrategyPrimary, 1)
	require.NoError(t, err)
	assert.True(t, attempt.Success)
	assert.False(t, attempt.ProducedRecord())
	assert.Contains(t, attempt.Error, "corrupted")
}
