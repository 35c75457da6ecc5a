// Package pipeline sequences the stages of a scribe run.
//
// A run captures the environment, builds the project twice (gate, then
// instrumented with fallback), indexes the compilation record and runs the
// selected analysis queries. Stages are sequential; the first failing stage
// up to indexing ends the run. Whatever happened is persisted: run.json,
// report.txt, metrics.prom and a ledger entry are written for failed runs too.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/config"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/flock"
	"github.com/mrz1836/scribe/internal/metrics"
	"github.com/mrz1836/scribe/internal/process"
	"github.com/mrz1836/scribe/internal/publish"
	"github.com/mrz1836/scribe/internal/store"
)

var tracer = otel.Tracer("scribe.pipeline")

// Options are the per-invocation inputs of a run.
type Options struct {
	// ProjectDir is the project root; builds run from here.
	ProjectDir string

	// OutDir receives every artifact of the run.
	OutDir string

	// Jobs is the build parallelism hint. Zero falls back to build.jobs, then
	// to the number of CPUs.
	Jobs int

	// Queries selects configured queries by name. Empty runs all of them.
	Queries []string
}

// Dialer creates the object store client used for publication.
type Dialer func(publish.Settings) (publish.ObjectStore, error)

// Pipeline runs scribe's stages with one configuration.
type Pipeline struct {
	cfg         *config.Config
	runner      process.Runner
	clock       clock.Clock
	environ     func() []string
	getenv      func(string) string
	dial        Dialer
	buildOutput io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunner sets the process runner for every collaborator (tests).
func WithRunner(r process.Runner) Option {
	return func(p *Pipeline) { p.runner = r }
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithEnviron sets the source of the environment captured by the snapshot.
func WithEnviron(fn func() []string) Option {
	return func(p *Pipeline) { p.environ = fn }
}

// WithGetenv sets the lookup for publication credentials.
func WithGetenv(fn func(string) string) Option {
	return func(p *Pipeline) { p.getenv = fn }
}

// WithDialer replaces the MinIO client factory.
func WithDialer(d Dialer) Option {
	return func(p *Pipeline) { p.dial = d }
}

// WithBuildOutput streams build output to w while builds run.
func WithBuildOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.buildOutput = w }
}

// New creates a pipeline for a validated configuration.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		clock:   clock.RealClock{},
		environ: os.Environ,
		getenv:  os.Getenv,
		dial:    dialMinIO,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func dialMinIO(s publish.Settings) (publish.ObjectStore, error) {
	client, err := publish.NewMinIOClient(s)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// executor creates an executor bounded by timeout.
func (p *Pipeline) executor(timeout time.Duration) *process.Executor {
	return process.NewExecutorWithRunner(timeout, p.runner)
}

// Normalize resolves paths and the jobs hint.
func (p *Pipeline) Normalize(opts Options) (Options, error) {
	if opts.ProjectDir == "" {
		return opts, fmt.Errorf("%w: --project", scribeerrors.ErrEmptyValue)
	}
	if opts.OutDir == "" {
		return opts, fmt.Errorf("%w: --out", scribeerrors.ErrEmptyValue)
	}

	project, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return opts, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	info, err := os.Stat(project)
	if err != nil || !info.IsDir() {
		return opts, fmt.Errorf("%w: %s", scribeerrors.ErrProjectNotFound, project)
	}
	out, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return opts, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	opts.ProjectDir = project
	opts.OutDir = out

	if opts.Jobs < 0 {
		return opts, fmt.Errorf("%w: --jobs %d", scribeerrors.ErrValueOutOfRange, opts.Jobs)
	}
	if opts.Jobs == 0 {
		opts.Jobs = p.cfg.Build.Jobs
	}
	if opts.Jobs == 0 {
		opts.Jobs = runtime.NumCPU()
	}
	return opts, nil
}

// Run executes one pipeline run.
//
// Invalid options or query selections fail before anything is written. Once
// the output directory is locked, the returned run is never nil: it carries
// the attempt history and stage events of whatever stages ran. The error is
// the error of the first failing stage among snapshot, build and index;
// query failures only show up in the run's query outcomes.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*domain.PipelineRun, error) {
	if p.cfg == nil {
		return nil, scribeerrors.ErrConfigNil
	}
	opts, err := p.Normalize(opts)
	if err != nil {
		return nil, err
	}
	queries, err := p.Queries(opts.ProjectDir, opts.Queries)
	if err != nil {
		return nil, err
	}

	lock, err := flock.Acquire(ctx, opts.OutDir, p.cfg.Run.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	ledger, err := store.Open(ctx, store.Config{
		Path:       filepath.Join(opts.OutDir, constants.StateDir),
		SyncWrites: p.cfg.Store.SyncWrites,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = ledger.Close() }()

	e := &execution{
		p:       p,
		opts:    opts,
		queries: queries,
		ledger:  ledger,
		metrics: metrics.NewRecorder(),
		run: &domain.PipelineRun{
			ID:            uuid.NewString(),
			SchemaVersion: constants.RunSchemaVersion,
			Project:       opts.ProjectDir,
			Jobs:          opts.Jobs,
			OutDir:        opts.OutDir,
			Status:        constants.RunStatusRunning,
			StartedAt:     p.clock.Now().UTC(),
			Attempts:      []domain.BuildAttempt{},
			Artifacts:     []domain.Artifact{},
			Queries:       []domain.QueryOutcome{},
			History:       []domain.StageEvent{},
		},
	}

	logger := zerolog.Ctx(ctx).With().Str("run_id", e.run.ID).Logger()
	ctx = logger.WithContext(ctx)

	ctx, span := tracer.Start(ctx, "scribe.Run",
		trace.WithAttributes(
			attribute.String("scribe.run_id", e.run.ID),
			attribute.String("scribe.project", opts.ProjectDir),
			attribute.Int("scribe.jobs", opts.Jobs),
			attribute.Int("scribe.queries", len(queries)),
		),
	)
	defer span.End()

	logger.Info().
		Str("project", opts.ProjectDir).
		Str("out", opts.OutDir).
		Int("jobs", opts.Jobs).
		Int("queries", len(queries)).
		Msg("run started")

	runErr := e.execute(ctx)
	e.finish(ctx, runErr)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Error().Err(runErr).Msg("run failed")
		return e.run, runErr
	}
	span.SetStatus(codes.Ok, "")
	logger.Info().
		Int("queries_failed", len(e.run.FailedQueries())).
		Msg("run succeeded")
	return e.run, nil
}

// execution is the mutable state of one run.
type execution struct {
	p       *Pipeline
	opts    Options
	queries []domain.AnalysisQuery
	ledger  *store.Store
	metrics *metrics.Recorder

	mu  sync.Mutex
	run *domain.PipelineRun

	snap       *domain.EnvironmentSnapshot
	record     *domain.CompilationRecord
	gatePassed bool
}

// execute runs the stages in order and stops at the first hard failure.
func (e *execution) execute(ctx context.Context) error {
	if err := e.snapshot(ctx); err != nil {
		return err
	}
	if err := e.build(ctx); err != nil {
		return err
	}
	if err := e.index(ctx); err != nil {
		e.skip(constants.StageQueries, "index unavailable")
		return err
	}
	e.runQueries(ctx)
	return nil
}

// event appends a history entry timed from start. A zero start leaves the
// duration unset.
func (e *execution) event(stage constants.StageName, outcome domain.StageOutcome, msg string, err error, start time.Time) {
	now := e.p.clock.Now()
	ev := domain.StageEvent{
		Stage:     stage,
		Outcome:   outcome,
		Message:   msg,
		Timestamp: now.UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if !start.IsZero() {
		ev.DurationMs = now.Sub(start).Milliseconds()
	}
	e.appendEvent(ev, !start.IsZero() || outcome != domain.OutcomeWarning)
}

// appendEvent adds ev to the history. Stage verdicts are also observed as
// metrics; diagnostic warnings are not.
func (e *execution) appendEvent(ev domain.StageEvent, verdict bool) {
	e.mu.Lock()
	e.run.History = append(e.run.History, ev)
	e.mu.Unlock()

	if verdict {
		e.metrics.ObserveStage(ev)
	}
}

func (e *execution) warn(stage constants.StageName, msg string, err error) {
	e.event(stage, domain.OutcomeWarning, msg, err, time.Time{})
}

func (e *execution) skip(stage constants.StageName, msg string) {
	e.event(stage, domain.OutcomeSkipped, msg, nil, time.Time{})
}

// ok closes a stage span successfully.
func (e *execution) ok(span trace.Span, stage constants.StageName, start time.Time, msg string) {
	e.event(stage, domain.OutcomeOK, msg, nil, start)
	span.SetStatus(codes.Ok, "")
}

// fail closes a stage span with err and returns it.
func (e *execution) fail(span trace.Span, stage constants.StageName, start time.Time, msg string, err error) error {
	e.event(stage, domain.OutcomeFailed, msg, err, start)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// addArtifact adds a written file to the artifact set.
func (e *execution) addArtifact(a domain.Artifact) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.run.Artifacts = append(e.run.Artifacts, a)
}
