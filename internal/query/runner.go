// Package query runs analysis queries against a built index.
//
// Each query runs its tool once and writes one artifact. Failures are
// isolated: a failing query records its error in its own slot and never
// stops the others. Queries chained with entity_from run in a second wave,
// after the symbol-search query that resolves their entity id.
package query

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/scribe/internal/clock"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fileutil"
	"github.com/mrz1836/scribe/internal/process"
)

// Settings configures the query tools.
type Settings struct {
	// Tools maps each kind to its tool argv prefix.
	Tools map[constants.QueryKind][]string

	// ArtifactDir receives {name}.{ext} files.
	ArtifactDir string

	// Workers bounds concurrent tool processes.
	Workers int

	// Env is the tool environment, usually the snapshot's variables.
	Env []string
}

// Runner executes queries.
type Runner struct {
	settings Settings
	executor *process.Executor
	clock    clock.Clock
}

// NewRunner creates a query runner.
func NewRunner(settings Settings, executor *process.Executor, clk clock.Clock) *Runner {
	if settings.Workers < 1 {
		settings.Workers = constants.DefaultQueryWorkers
	}
	if settings.Workers > constants.MaxQueryWorkers {
		settings.Workers = constants.MaxQueryWorkers
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Runner{settings: settings, executor: executor, clock: clk}
}

// results is the mutex-guarded outcome table shared by workers.
type results struct {
	mu  sync.Mutex
	out map[string]domain.QueryOutcome
	ids map[string]string
}

func (r *results) set(o domain.QueryOutcome, entityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out[o.Name] = o
	if entityID != "" {
		r.ids[o.Name] = entityID
	}
}

func (r *results) get(name string) (domain.QueryOutcome, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.out[name]
	return o, r.ids[name], ok
}

// RunAll runs every query and returns one outcome per query name. It never
// returns an error; all failures are reported in the outcomes. An empty query
// list yields an empty map.
func (r *Runner) RunAll(ctx context.Context, idx *domain.IndexDatabase, queries []domain.AnalysisQuery) map[string]domain.QueryOutcome {
	log := zerolog.Ctx(ctx)
	res := &results{
		out: make(map[string]domain.QueryOutcome, len(queries)),
		ids: make(map[string]string),
	}

	byName := make(map[string]domain.AnalysisQuery, len(queries))
	var first, chained []domain.AnalysisQuery
	for _, q := range queries {
		if _, dup := byName[q.Name]; dup {
			log.Warn().Str("query", q.Name).Msg("duplicate query name ignored")
			continue
		}
		byName[q.Name] = q

		if err := Validate(q); err != nil {
			res.set(r.failure(q, err, 0), "")
			continue
		}
		if q.EntityFrom != "" {
			chained = append(chained, q)
			continue
		}
		first = append(first, q)
	}

	for _, q := range chained {
		if err := checkSource(q, byName); err != nil {
			res.set(r.failure(q, err, 0), "")
		}
	}

	r.wave(ctx, idx, first, res)

	var second []domain.AnalysisQuery
	for _, q := range chained {
		if _, _, done := res.get(q.Name); done {
			continue
		}
		src, id, _ := res.get(q.EntityFrom)
		switch {
		case !src.Success:
			res.set(r.failure(q, fmt.Errorf("%w: %s: %s", scribeerrors.ErrQueryDependencyFailed, q.EntityFrom, src.Error), 0), "")
		case id == "":
			res.set(r.failure(q, fmt.Errorf("%w: %s found no entity", scribeerrors.ErrQueryDependencyFailed, q.EntityFrom), 0), "")
		default:
			q.Params.EntityID = id
			second = append(second, q)
		}
	}

	r.wave(ctx, idx, second, res)

	failed := 0
	for _, o := range res.out {
		if !o.Success {
			failed++
		}
	}
	log.Info().Int("queries", len(res.out)).Int("failed", failed).Msg("queries finished")

	return res.out
}

// wave runs queries on a bounded worker pool and waits for all of them.
func (r *Runner) wave(ctx context.Context, idx *domain.IndexDatabase, queries []domain.AnalysisQuery, res *results) {
	if len(queries) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(r.settings.Workers)
	for _, q := range queries {
		g.Go(func() error {
			outcome, entityID := r.runOne(ctx, idx, q)
			res.set(outcome, entityID)
			return nil
		})
	}
	_ = g.Wait()
}

// runOne executes one query and writes its artifact.
func (r *Runner) runOne(ctx context.Context, idx *domain.IndexDatabase, q domain.AnalysisQuery) (domain.QueryOutcome, string) {
	log := zerolog.Ctx(ctx).With().Str("query", q.Name).Str("kind", q.Kind.String()).Logger()
	start := r.clock.Now()
	elapsed := func() int64 { return r.clock.Now().Sub(start).Milliseconds() }

	if err := ctx.Err(); err != nil {
		return r.failure(q, err, 0), ""
	}

	argv, err := r.argv(idx, q)
	if err != nil {
		return r.failure(q, err, elapsed()), ""
	}

	result, err := r.executor.Run(ctx, process.Command{Argv: argv, Env: r.settings.Env})
	if err != nil {
		log.Warn().Err(err).Msg("query failed")
		return r.failure(q, err, elapsed()), ""
	}

	path, err := fileutil.SafeJoin(r.settings.ArtifactDir, q.ArtifactName())
	if err != nil {
		return r.failure(q, err, elapsed()), ""
	}
	if err := fileutil.AtomicWrite(path, []byte(result.Stdout)); err != nil {
		return r.failure(q, err, elapsed()), ""
	}
	sum, size, err := fileutil.HashFile(path)
	if err != nil {
		return r.failure(q, err, elapsed()), ""
	}

	kind := constants.ArtifactKindText
	if q.Kind.IsGraph() {
		kind = constants.ArtifactKindGraph
	}

	outcome := domain.QueryOutcome{
		Name:     q.Name,
		Kind:     q.Kind,
		Success:  true,
		EntityID: q.Params.EntityID,
		Artifact: &domain.Artifact{
			Name:      q.ArtifactName(),
			Path:      path,
			Kind:      kind,
			Producer:  "query:" + q.Name,
			SizeBytes: size,
			SHA256:    sum,
			WrittenAt: r.clock.Now().UTC(),
		},
	}
	outcome.DurationMs = elapsed()

	var entityID string
	if q.Kind == constants.QueryKindSymbolSearch {
		entityID = FirstEntityID(result.Stdout)
	}

	log.Info().Str("artifact", path).Int64("bytes", size).Msg("query completed")
	return outcome, entityID
}

// argv builds the tool invocation for a validated query.
func (r *Runner) argv(idx *domain.IndexDatabase, q domain.AnalysisQuery) ([]string, error) {
	tool := r.settings.Tools[q.Kind]
	if len(tool) == 0 {
		return nil, fmt.Errorf("%w: no tool configured for %s", scribeerrors.ErrEmptyValue, q.Kind)
	}
	if idx == nil || idx.Path == "" {
		return nil, fmt.Errorf("%w: index path", scribeerrors.ErrEmptyValue)
	}

	argv := append(append([]string{}, tool...), "--db", idx.Path)
	p := q.Params
	switch q.Kind {
	case constants.QueryKindSymbolSearch:
		argv = append(argv, "--name", p.NameFilter)
	case constants.QueryKindUnsafeCast:
		if p.IncludeImplicit {
			argv = append(argv, "--include-implicit")
		}
	case constants.QueryKindCallGraph:
		argv = append(argv, "--entity", p.EntityID)
		if p.ReachableFrom != "" {
			argv = append(argv, "--reachable-from", p.ReachableFrom)
		}
	case constants.QueryKindReferenceGraph:
		argv = append(argv, "--entity", p.EntityID)
		if p.HopLength > 0 {
			argv = append(argv, "--hops", strconv.Itoa(p.HopLength))
		}
	case constants.QueryKindDivergence:
	}
	return argv, nil
}

func (r *Runner) failure(q domain.AnalysisQuery, err error, durationMs int64) domain.QueryOutcome {
	wrapped := fmt.Errorf("%w: %s: %w", scribeerrors.ErrQueryFailed, q.Name, err)
	return domain.QueryOutcome{
		Name:       q.Name,
		Kind:       q.Kind,
		Error:      wrapped.Error(),
		Err:        wrapped,
		DurationMs: durationMs,
	}
}

// FirstEntityID returns the entity id of the first result line of a
// symbol-search listing: the first field of the first line that is neither
// blank nor a '#' comment.
func FirstEntityID(listing string) string {
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Fields(line)[0]
	}
	return ""
}

// Ordered returns outcomes in query order, skipping names without a slot.
func Ordered(queries []domain.AnalysisQuery, outcomes map[string]domain.QueryOutcome) []domain.QueryOutcome {
	ordered := make([]domain.QueryOutcome, 0, len(outcomes))
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		if seen[q.Name] {
			continue
		}
		seen[q.Name] = true
		if o, ok := outcomes[q.Name]; ok {
			ordered = append(ordered, o)
		}
	}
	return ordered
}
