package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/mrz1836/scribe/internal/config"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/query"
)

// Queries returns the query set of a run: query.definitions followed by the
// queries of query.plan, narrowed to names. A relative plan path is resolved
// against projectDir.
func (p *Pipeline) Queries(projectDir string, names []string) ([]domain.AnalysisQuery, error) {
	all := Definitions(p.cfg.Query.Definitions)

	if plan := p.cfg.Query.Plan; plan != "" {
		if !filepath.IsAbs(plan) {
			plan = filepath.Join(projectDir, plan)
		}
		planned, err := query.LoadPlan(plan)
		if err != nil {
			return nil, err
		}
		all = append(all, planned...)
	}

	if err := query.CheckNames(all); err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrConfigInvalidQuery, err)
	}
	return query.Select(all, names)
}

// Definitions converts configured query definitions.
func Definitions(defs []config.QueryDefinition) []domain.AnalysisQuery {
	queries := make([]domain.AnalysisQuery, 0, len(defs))
	for _, d := range defs {
		queries = append(queries, domain.AnalysisQuery{
			Name:       d.Name,
			Kind:       constants.QueryKind(d.Kind),
			EntityFrom: d.EntityFrom,
			Params: domain.QueryParams{
				EntityID:        d.EntityID,
				NameFilter:      d.NameFilter,
				HopLength:       d.HopLength,
				ReachableFrom:   d.ReachableFrom,
				IncludeImplicit: d.IncludeImplicit,
			},
		})
	}
	return queries
}

// ToolsByKind keys configured query tools by kind.
func ToolsByKind(tools map[string][]string) map[constants.QueryKind][]string {
	out := make(map[constants.QueryKind][]string, len(tools))
	for kind, argv := range tools {
		out[constants.QueryKind(kind)] = argv
	}
	return out
}
