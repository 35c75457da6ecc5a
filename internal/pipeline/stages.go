package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrz1836/scribe/internal/build"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	"github.com/mrz1836/scribe/internal/envsnap"
	"github.com/mrz1836/scribe/internal/fileutil"
	"github.com/mrz1836/scribe/internal/index"
	"github.com/mrz1836/scribe/internal/query"
)

// fileArtifact describes a file already written under the output directory.
func (e *execution) fileArtifact(path string, kind constants.ArtifactKind, producer string) (domain.Artifact, error) {
	sum, size, err := fileutil.HashFile(path)
	if err != nil {
		return domain.Artifact{}, err
	}
	return domain.Artifact{
		Name:      filepath.Base(path),
		Path:      path,
		Kind:      kind,
		Producer:  producer,
		SizeBytes: size,
		SHA256:    sum,
		WrittenAt: e.p.clock.Now().UTC(),
	}, nil
}

// snapshot captures and persists the environment.
func (e *execution) snapshot(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scribe.snapshot")
	defer span.End()
	start := e.p.clock.Now()
	stage := constants.StageSnapshot

	snap, path, err := e.p.capture(ctx, e.opts.OutDir, func(w error) {
		e.warn(stage, "diagnostic lookup failed", w)
	})
	if err != nil {
		return e.fail(span, stage, start, "environment capture failed", err)
	}
	e.snap = snap
	e.run.SnapshotPath = path

	if a, err := e.fileArtifact(path, constants.ArtifactKindSnapshot, "snapshot"); err == nil {
		e.addArtifact(a)
	}

	span.SetAttributes(attribute.Int("scribe.variables", len(snap.Variables)))
	e.ok(span, stage, start, fmt.Sprintf("%d variables, resource dir %s", len(snap.Variables), snap.SearchPaths.ResourceDir))
	return nil
}

// capture runs the snapshotter and writes environment.json into outDir.
func (p *Pipeline) capture(ctx context.Context, outDir string, onWarning func(error)) (*domain.EnvironmentSnapshot, string, error) {
	capturer := envsnap.NewCapturer(
		p.cfg.Toolchain.Compiler,
		p.executor(p.cfg.Toolchain.Timeout),
		envsnap.WithEnviron(p.environ),
		envsnap.WithClock(p.clock),
		envsnap.WithWarningHandler(onWarning),
	)
	snap, err := capturer.Capture(ctx)
	if err != nil {
		return nil, "", err
	}

	path := filepath.Join(outDir, constants.SnapshotFileName)
	if err := envsnap.Save(path, snap); err != nil {
		return nil, "", err
	}
	return snap, path, nil
}

// build runs the gate and instrumented builds.
func (e *execution) build(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scribe.build",
		trace.WithAttributes(attribute.Int("scribe.jobs", e.opts.Jobs)),
	)
	defer span.End()
	start := e.p.clock.Now()
	stage := constants.StageBuild
	cfg := e.p.cfg

	settings := build.Settings{
		ProjectDir:     e.opts.ProjectDir,
		Command:        cfg.Build.Command,
		JobsArgs:       cfg.Build.JobsArgs,
		PrimaryWrapper: cfg.Instrumentation.Wrapper,
		PrimaryAction:  cfg.Instrumentation.Action,
		ShimCC:         cfg.Instrumentation.ShimCC,
		ShimCXX:        cfg.Instrumentation.ShimCXX,
		ShimJournalVar: cfg.Instrumentation.ShimJournalVar,
		ShimEnv:        cfg.Instrumentation.ShimEnv,
		RecordPath:     filepath.Join(e.opts.OutDir, constants.RecordFileName),
		StagingDir:     filepath.Join(e.opts.OutDir, constants.StagingDir),
	}
	executor := e.p.executor(cfg.Build.Timeout)
	if e.p.buildOutput != nil {
		executor.SetLiveOutput(e.p.buildOutput)
	}

	outcome, err := build.NewOrchestrator(settings, e.snap, executor, e.p.clock).Execute(ctx, e.opts.Jobs)
	e.run.Attempts = append(e.run.Attempts, outcome.Attempts...)
	for _, a := range outcome.Attempts {
		e.metrics.ObserveAttempt(a)
	}
	e.gatePassed = outcome.GatePassed
	span.SetAttributes(attribute.Int("scribe.attempts", len(outcome.Attempts)))

	if outcome.FallbackState != "" {
		e.run.FallbackState = outcome.FallbackState
		e.run.FallbackTransitions = outcome.Transitions
		e.metrics.ObserveFallback(outcome.FallbackState)
		e.fallbackEvent(outcome)
	}

	if err != nil {
		return e.fail(span, stage, start, "build failed", err)
	}

	e.record = outcome.Record
	e.run.Record = &domain.RecordSummary{
		Path:     outcome.Record.Path,
		Entries:  outcome.Record.Len(),
		Strategy: outcome.Strategy,
	}
	e.metrics.ObserveRecord(outcome.Record.Len())
	if a, err := e.fileArtifact(outcome.Record.Path, constants.ArtifactKindRecord, "build:"+outcome.Strategy.String()); err == nil {
		e.addArtifact(a)
	}

	e.ok(span, stage, start, fmt.Sprintf("%d compiler invocations recorded (%s)", outcome.Record.Len(), outcome.Strategy))
	return nil
}

// fallbackEvent records how the fallback controller ended. The event's
// duration is that of the retry attempt.
func (e *execution) fallbackEvent(outcome *build.Outcome) {
	ev := domain.StageEvent{
		Stage:     constants.StageFallback,
		Outcome:   domain.OutcomeFailed,
		Message:   "fallback " + outcome.FallbackState.String(),
		Timestamp: e.p.clock.Now().UTC(),
	}
	if n := len(outcome.Attempts); n > 2 {
		ev.DurationMs = outcome.Attempts[n-1].DurationMs
	}
	if len(outcome.Transitions) > 0 {
		ev.Error = outcome.Transitions[0].Reason
	}
	if outcome.FallbackState == constants.FallbackStateRecovered {
		ev.Outcome = domain.OutcomeWarning
		ev.Message = "primary instrumentation failed, recovered with " + outcome.Strategy.String()
	}
	e.appendEvent(ev, true)
}

// index builds or reuses the code index.
func (e *execution) index(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scribe.index")
	defer span.End()
	start := e.p.clock.Now()
	stage := constants.StageIndex
	cfg := e.p.cfg

	builder := index.NewBuilder(
		index.Settings{
			Engine:    cfg.Index.Engine,
			Workspace: e.opts.ProjectDir,
			OutDir:    e.opts.OutDir,
			EnvFile:   e.run.SnapshotPath,
		},
		e.p.executor(cfg.Index.Timeout),
		index.WithMemo(e.ledger),
		index.WithClock(e.p.clock),
		index.WithWarningHandler(func(msg string) { e.warn(stage, msg, nil) }),
	)

	idx, err := builder.Build(ctx, e.record, e.snap)
	if err != nil {
		return e.fail(span, stage, start, "index build failed", err)
	}
	e.run.Index = idx
	e.metrics.ObserveIndex(idx)
	span.SetAttributes(
		attribute.String("scribe.index_key", idx.Key),
		attribute.Bool("scribe.index_cached", idx.Cached),
	)

	msg := fmt.Sprintf("%d entries indexed, %d skipped", idx.ValidEntries, idx.SkippedEntries)
	if idx.Cached {
		msg += " (cached)"
	}
	e.ok(span, stage, start, msg)
	return nil
}

// runQueries runs the selected queries. Failures stay in their slots.
func (e *execution) runQueries(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "scribe.queries",
		trace.WithAttributes(attribute.Int("scribe.queries", len(e.queries))),
	)
	defer span.End()
	start := e.p.clock.Now()
	stage := constants.StageQueries
	cfg := e.p.cfg

	if len(e.queries) == 0 {
		e.ok(span, stage, start, "no queries selected")
		return
	}

	runner := query.NewRunner(
		query.Settings{
			Tools:       ToolsByKind(cfg.Query.Tools),
			ArtifactDir: filepath.Join(e.opts.OutDir, constants.ArtifactsDir),
			Workers:     cfg.Query.Workers,
			Env:         e.snap.Environ(),
		},
		e.p.executor(cfg.Query.Timeout),
		e.p.clock,
	)
	outcomes := runner.RunAll(ctx, e.run.Index, e.queries)
	e.run.Queries = query.Ordered(e.queries, outcomes)

	failed := 0
	for _, o := range e.run.Queries {
		e.metrics.ObserveQuery(o)
		if o.Success && o.Artifact != nil {
			e.addArtifact(*o.Artifact)
			continue
		}
		failed++
		e.warn(stage, "query "+o.Name+" failed", o.Err)
	}

	msg := fmt.Sprintf("%d of %d queries succeeded", len(e.run.Queries)-failed, len(e.run.Queries))
	if failed > 0 {
		e.event(stage, domain.OutcomeWarning, msg, nil, start)
		return
	}
	e.ok(span, stage, start, msg)
}
