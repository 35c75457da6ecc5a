package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/scribe/internal/catalog"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/ctxutil"
	"github.com/mrz1836/scribe/internal/domain"
	"github.com/mrz1836/scribe/internal/envsnap"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fileutil"
	"github.com/mrz1836/scribe/internal/flock"
	"github.com/mrz1836/scribe/internal/publish"
	"github.com/mrz1836/scribe/internal/tui"
)

// finish settles the run status and persists everything about the run. It
// runs on a detached context so an interrupted run is still recorded.
func (e *execution) finish(ctx context.Context, runErr error) {
	ctx = ctxutil.Detached(ctx)
	log := zerolog.Ctx(ctx)

	completed := e.p.clock.Now().UTC()
	e.run.CompletedAt = &completed
	if runErr == nil {
		e.run.Status = constants.RunStatusSucceeded
	} else {
		e.run.Status = constants.RunStatusFailed
		e.run.Error = runErr.Error()
		e.run.BuildOutputsPreserved = e.gatePassed
	}
	e.metrics.ObserveRun(e.run.Succeeded())

	e.writeReport(ctx)
	e.writeMetrics(ctx)
	shared := e.shareable(ctx)
	e.catalog(ctx, shared)
	e.publish(ctx, shared)

	if err := fileutil.WriteJSON(filepath.Join(e.opts.OutDir, constants.RunFileName), e.run); err != nil {
		log.Error().Err(err).Msg("failed to write run file")
	}
	if err := e.ledger.SaveRun(ctx, e.run); err != nil {
		log.Error().Err(err).Msg("failed to record run in ledger")
	}
}

func (e *execution) writeReport(ctx context.Context) {
	path := filepath.Join(e.opts.OutDir, constants.ReportFileName)
	if err := fileutil.AtomicWrite(path, []byte(tui.RenderReport(e.run))); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to write report")
		return
	}
	if a, err := e.fileArtifact(path, constants.ArtifactKindReport, "report"); err == nil {
		e.addArtifact(a)
	}
}

func (e *execution) writeMetrics(ctx context.Context) {
	if !e.p.cfg.Run.Metrics {
		return
	}
	path := filepath.Join(e.opts.OutDir, constants.MetricsFileName)
	if err := e.metrics.WriteTextfile(path); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to write metrics")
		return
	}
	if a, err := e.fileArtifact(path, constants.ArtifactKindMetrics, "metrics"); err == nil {
		e.addArtifact(a)
	}
}

// catalog indexes the run's artifacts for "scribe search".
func (e *execution) catalog(ctx context.Context, artifacts []domain.Artifact) {
	if !e.p.cfg.Run.Catalog {
		return
	}
	log := zerolog.Ctx(ctx)

	cat, err := catalog.Open(filepath.Join(e.opts.OutDir, constants.CatalogDir))
	if err != nil {
		log.Warn().Err(err).Msg("artifact catalog unavailable")
		return
	}
	defer func() { _ = cat.Close() }()

	n, err := cat.IndexArtifacts(ctx, e.run.ID, artifacts)
	if err != nil {
		log.Warn().Err(err).Msg("failed to catalog artifacts")
		return
	}
	log.Debug().Int("documents", n).Msg("artifacts cataloged")
}

// shareable returns the artifact set as it may leave the output directory:
// the snapshot is swapped for a redacted copy under the same name. When the
// copy cannot be written the snapshot is withheld.
func (e *execution) shareable(ctx context.Context) []domain.Artifact {
	out := make([]domain.Artifact, 0, len(e.run.Artifacts))
	for _, a := range e.run.Artifacts {
		if a.Kind != constants.ArtifactKindSnapshot {
			out = append(out, a)
			continue
		}
		redacted, err := e.redactedSnapshot(a)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("snapshot withheld from catalog and publication")
			continue
		}
		out = append(out, redacted)
	}
	return out
}

func (e *execution) redactedSnapshot(a domain.Artifact) (domain.Artifact, error) {
	if e.snap == nil {
		return domain.Artifact{}, fmt.Errorf("%w: no snapshot captured", scribeerrors.ErrInvalidArgument)
	}
	path := filepath.Join(e.opts.OutDir, constants.SharedSnapshotFileName)
	if err := envsnap.Save(path, envsnap.Redact(e.snap)); err != nil {
		return domain.Artifact{}, err
	}
	shared, err := e.fileArtifact(path, a.Kind, a.Producer)
	if err != nil {
		return domain.Artifact{}, err
	}
	shared.Name = a.Name
	return shared, nil
}

// publish uploads the artifact set when publication is enabled. A failed
// upload is recorded in the history and never changes the run status.
func (e *execution) publish(ctx context.Context, artifacts []domain.Artifact) {
	cfg := e.p.cfg.Publish
	if !cfg.Enabled {
		return
	}
	ctx, span := tracer.Start(ctx, "scribe.publish")
	defer span.End()
	start := e.p.clock.Now()
	stage := constants.StagePublish

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	settings := publish.Settings{
		Endpoint:     cfg.Endpoint,
		Region:       cfg.Region,
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		AccessKey:    e.p.getenv(cfg.AccessKeyEnv),
		SecretKey:    e.p.getenv(cfg.SecretKeyEnv),
		Secure:       cfg.Secure,
		CreateBucket: cfg.CreateBucket,
	}
	client, err := e.p.dial(settings)
	if err != nil {
		_ = e.fail(span, stage, start, "object store unavailable", err)
		return
	}

	uploads, err := publish.NewPublisher(settings, client).Publish(ctx, e.run.ID, artifacts)
	if err != nil {
		_ = e.fail(span, stage, start, fmt.Sprintf("%d of %d artifacts uploaded", len(uploads), len(artifacts)), err)
		return
	}
	e.ok(span, stage, start, fmt.Sprintf("%d artifacts uploaded to %s", len(uploads), cfg.Bucket))
}

// Snapshot captures the environment into outDir/environment.json without
// building anything.
func (p *Pipeline) Snapshot(ctx context.Context, outDir string) (*domain.EnvironmentSnapshot, string, error) {
	if p.cfg == nil {
		return nil, "", scribeerrors.ErrConfigNil
	}
	if outDir == "" {
		return nil, "", fmt.Errorf("%w: --out", scribeerrors.ErrEmptyValue)
	}
	out, err := filepath.Abs(outDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve output directory: %w", err)
	}

	lock, err := flock.Acquire(ctx, out, p.cfg.Run.LockTimeout)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = lock.Release() }()

	return p.capture(ctx, out, func(w error) {
		zerolog.Ctx(ctx).Warn().Err(w).Msg("diagnostic lookup failed")
	})
}
