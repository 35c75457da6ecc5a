// Package build drives the target project's own build procedure.
//
// The build script is an opaque process. It runs once uninstrumented as a
// correctness gate, then under instrumentation to capture a compilation
// record. When the primary wrapper fails, the fallback controller retries
// once with the compiler shim.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fallback"
	"github.com/mrz1836/scribe/internal/process"
	"github.com/mrz1836/scribe/internal/record"
)

// Argv template placeholders.
const (
	PlaceholderJobs   = "{jobs}"
	PlaceholderRecord = "{record}"
	PlaceholderAction = "{action}"
)

// stderrTailBytes bounds the stderr kept on a BuildAttempt.
const stderrTailBytes = 8 * 1024

// Settings describes how to invoke the project build and its recorders.
type Settings struct {
	// ProjectDir is the working directory of the build.
	ProjectDir string

	// Command is the build script argv, without the jobs hint.
	Command []string

	// JobsArgs is the jobs hint template appended to Command, e.g. ["-j", "{jobs}"].
	JobsArgs []string

	// PrimaryWrapper is the instrumentation wrapper template prepended to the
	// build argv, e.g. ["bear", "--output", "{record}", "--"].
	PrimaryWrapper []string

	// PrimaryAction fills {action} (pass-through, record or embed).
	PrimaryAction string

	// ShimCC and ShimCXX replace CC and CXX for the shim strategy. Both empty
	// disables the shim.
	ShimCC  string
	ShimCXX string

	// ShimJournalVar names the variable carrying the shim journal path.
	ShimJournalVar string

	// ShimEnv holds additional variables exported to shimmed builds.
	ShimEnv map[string]string

	// RecordPath is where the current compilation record is installed.
	RecordPath string

	// StagingDir holds per-strategy journals before promotion.
	StagingDir string
}

// ShimEnabled reports whether the shim strategy is configured.
func (s Settings) ShimEnabled() bool {
	return s.ShimCC != "" || s.ShimCXX != ""
}

// Outcome is the result of the two-pass policy.
type Outcome struct {
	Attempts []domain.BuildAttempt

	// Record is the current compilation record, nil unless a strategy succeeded.
	Record *domain.CompilationRecord

	// Strategy is the strategy that produced Record.
	Strategy constants.RecordingStrategy

	// FallbackState is empty when the primary strategy succeeded.
	FallbackState constants.FallbackState

	Transitions []domain.FallbackTransition

	// GatePassed is true once the uninstrumented build succeeded. Its outputs
	// are left in place whatever happens afterwards.
	GatePassed bool
}

// Orchestrator runs project builds with an explicit environment.
type Orchestrator struct {
	settings Settings
	snapshot *domain.EnvironmentSnapshot
	executor *process.Executor
	clock    clock.Clock
}

// NewOrchestrator creates an orchestrator. Every build subprocess receives
// the snapshot's variables as its environment.
func NewOrchestrator(settings Settings, snapshot *domain.EnvironmentSnapshot, executor *process.Executor, clk clock.Clock) *Orchestrator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Orchestrator{
		settings: settings,
		snapshot: snapshot,
		executor: executor,
		clock:    clk,
	}
}

// Execute applies the two-pass policy: gate, primary, then fallback.
//
// The returned Outcome is never nil and always lists every attempt made, also
// on error. Errors are ErrBuildFailed for the gate and ErrInstrumentation
// when both strategies failed.
func (o *Orchestrator) Execute(ctx context.Context, jobs int) (*Outcome, error) {
	log := zerolog.Ctx(ctx)
	out := &Outcome{}

	gate, err := o.RunBuild(ctx, constants.BuildModeUninstrumented, jobs)
	if gate != nil {
		out.Attempts = append(out.Attempts, *gate)
	}
	if err != nil {
		return out, err
	}
	out.GatePassed = true

	if err := removeStale(o.settings.RecordPath); err != nil {
		return out, err
	}

	primary, err := o.RunBuild(ctx, constants.BuildModeInstrumented, jobs)
	if primary != nil {
		out.Attempts = append(out.Attempts, *primary)
	}
	if ctxErr := ctxutil.Canceled(ctx); ctxErr != nil {
		return out, ctxErr
	}
	if err == nil && primary.ProducedRecord() {
		return o.promote(out, primary)
	}

	reason := failureReason(primary, err)
	log.Warn().Str("reason", reason).Msg("primary instrumentation produced no record")

	alternative := constants.RecordingStrategy("")
	if o.settings.ShimEnabled() {
		alternative = constants.StrategyShim
	}
	ctrl := fallback.NewController(alternative, o.clock)

	retry, err := ctrl.Recover(ctx, reason, func(ctx context.Context, strategy constants.RecordingStrategy) (*domain.BuildAttempt, error) {
		return o.RunStrategy(ctx, strategy, jobs)
	})
	if retry != nil {
		out.Attempts = append(out.Attempts, *retry)
	}
	out.FallbackState = ctrl.State()
	out.Transitions = ctrl.Transitions()
	if err != nil {
		return out, err
	}
	return o.promote(out, retry)
}

// promote installs the attempt's journal as the current record.
func (o *Orchestrator) promote(out *Outcome, attempt *domain.BuildAttempt) (*Outcome, error) {
	rec, err := record.Read(o.settings.RecordPath)
	if err != nil {
		return out, fmt.Errorf("%w: %w", scribeerrors.ErrInstrumentation, err)
	}
	out.Record = rec
	out.Strategy = attempt.Strategy
	return out, nil
}

// RunBuild executes one build in the given mode. Instrumented mode uses the
// primary wrapper.
func (o *Orchestrator) RunBuild(ctx context.Context, mode constants.BuildMode, jobs int) (*domain.BuildAttempt, error) {
	if mode == constants.BuildModeUninstrumented {
		return o.RunStrategy(ctx, constants.StrategyDirect, jobs)
	}
	return o.RunStrategy(ctx, constants.StrategyPrimary, jobs)
}

// RunStrategy executes one build with the given recording strategy. Direct
// runs the uninstrumented gate; primary and shim record compiler invocations
// and, on success with a non-empty journal, atomically replace the current
// compilation record.
func (o *Orchestrator) RunStrategy(ctx context.Context, strategy constants.RecordingStrategy, jobs int) (*domain.BuildAttempt, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if jobs < 1 {
		return nil, fmt.Errorf("%w: jobs must be at least 1, got %d", scribeerrors.ErrInvalidArgument, jobs)
	}

	cmd, journal, err := o.command(strategy, jobs)
	if err != nil {
		return nil, err
	}
	if journal != "" {
		if err := removeStale(journal); err != nil {
			return nil, err
		}
	}

	mode := constants.BuildModeInstrumented
	if strategy == constants.StrategyDirect {
		mode = constants.BuildModeUninstrumented
	}

	log := zerolog.Ctx(ctx).With().
		Str("mode", mode.String()).
		Str("strategy", strategy.String()).
		Int("jobs", jobs).
		Logger()
	log.Info().Str("command", cmd.String()).Msg("starting build")

	started := o.clock.Now()
	result, runErr := o.executor.Run(ctx, cmd)
	completed := o.clock.Now()

	attempt := &domain.BuildAttempt{
		Mode:        mode,
		Strategy:    strategy,
		Command:     cmd.Argv,
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		DurationMs:  completed.Sub(started).Milliseconds(),
	}
	if result != nil {
		attempt.ExitCode = result.ExitCode
		attempt.TimedOut = result.TimedOut
		attempt.Stderr = result.StderrTail(stderrTailBytes)
	}

	if runErr != nil {
		attempt.Error = runErr.Error()
		log.Warn().Err(runErr).Int("exit_code", attempt.ExitCode).Msg("build failed")
		if strategy == constants.StrategyDirect {
			return attempt, fmt.Errorf("%w: %w", scribeerrors.ErrBuildFailed, runErr)
		}
		return attempt, runErr
	}
	attempt.Success = true

	if journal == "" {
		log.Info().Int64("duration_ms", attempt.DurationMs).Msg("build completed")
		return attempt, nil
	}

	entries, err := readJournal(journal)
	if err != nil {
		attempt.Error = err.Error()
		log.Warn().Err(err).Str("journal", journal).Msg("compilation journal unusable")
		return attempt, nil
	}
	attempt.RecordEntries = len(entries)
	if len(entries) == 0 {
		attempt.Error = scribeerrors.ErrEmptyRecord.Error()
		log.Warn().Str("journal", journal).Msg("compilation journal is empty")
		return attempt, nil
	}

	if _, err := record.Write(o.settings.RecordPath, entries); err != nil {
		attempt.Error = err.Error()
		return attempt, err
	}
	attempt.RecordPath = o.settings.RecordPath

	log.Info().
		Int("entries", attempt.RecordEntries).
		Int64("duration_ms", attempt.DurationMs).
		Msg("instrumented build completed")

	return attempt, nil
}

// command assembles the argv and environment for a strategy and returns the
// journal path the recorder writes to (empty for direct builds).
func (o *Orchestrator) command(strategy constants.RecordingStrategy, jobs int) (process.Command, string, error) {
	if len(o.settings.Command) == 0 {
		return process.Command{}, "", fmt.Errorf("%w: build command", scribeerrors.ErrEmptyValue)
	}

	buildArgv := append(append([]string{}, o.settings.Command...), expand(o.settings.JobsArgs, jobs, "", "")...)
	cmd := process.Command{Dir: o.settings.ProjectDir}

	switch strategy {
	case constants.StrategyDirect:
		cmd.Argv = buildArgv
		cmd.Env = o.snapshot.Environ()
		return cmd, "", nil

	case constants.StrategyPrimary:
		if len(o.settings.PrimaryWrapper) == 0 {
			return process.Command{}, "", fmt.Errorf("%w: instrumentation.primary.command", scribeerrors.ErrEmptyValue)
		}
		journal := o.journalPath(strategy)
		wrapper := expand(o.settings.PrimaryWrapper, jobs, journal, o.settings.PrimaryAction)
		cmd.Argv = append(wrapper, buildArgv...)
		cmd.Env = o.snapshot.Environ()
		return cmd, journal, nil

	case constants.StrategyShim:
		if !o.settings.ShimEnabled() {
			return process.Command{}, "", fmt.Errorf("%w: instrumentation.shim", scribeerrors.ErrEmptyValue)
		}
		journal := o.journalPath(strategy)
		overrides := make(map[string]string, len(o.settings.ShimEnv)+3)
		for k, v := range o.settings.ShimEnv {
			overrides[k] = v
		}
		if o.settings.ShimCC != "" {
			overrides["CC"] = o.settings.ShimCC
		}
		if o.settings.ShimCXX != "" {
			overrides["CXX"] = o.settings.ShimCXX
		}
		if o.settings.ShimJournalVar != "" {
			overrides[o.settings.ShimJournalVar] = journal
		}
		cmd.Argv = buildArgv
		cmd.Env = o.snapshot.EnvironWith(overrides)
		return cmd, journal, nil

	default:
		return process.Command{}, "", fmt.Errorf("%w: recording strategy %q", scribeerrors.ErrInvalidArgument, strategy)
	}
}

func (o *Orchestrator) journalPath(strategy constants.RecordingStrategy) string {
	if strategy == constants.StrategyShim {
		return filepath.Join(o.settings.StagingDir, constants.ShimJournalFileName)
	}
	return filepath.Join(o.settings.StagingDir, "primary_journal.json")
}

// removeStale deletes a file left by an earlier run so a failed recorder
// cannot hand its entries downstream.
func removeStale(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJournal(path string) ([]domain.CompileEntry, error) {
	rec, err := record.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: recorder wrote no journal", scribeerrors.ErrEmptyRecord)
		}
		return nil, err
	}
	return rec.Entries, nil
}

// expand substitutes placeholders in an argv template.
func expand(template []string, jobs int, journal, action string) []string {
	r := strings.NewReplacer(
		PlaceholderJobs, strconv.Itoa(jobs),
		PlaceholderRecord, journal,
		PlaceholderAction, action,
	)
	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = r.Replace(arg)
	}
	return out
}

func failureReason(attempt *domain.BuildAttempt, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case attempt == nil:
		return "no attempt"
	case attempt.Error != "":
		return attempt.Error
	default:
		return "empty compilation record"
	}
}

// Elapsed returns the summed duration of the attempts.
func (o *Outcome) Elapsed() time.Duration {
	var total int64
	for _, a := range o.Attempts {
		total += a.DurationMs
	}
	return time.Duration(total) * time.Millisecond
}
