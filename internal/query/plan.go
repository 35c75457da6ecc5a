package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
)

// Plan is the on-disk query plan format.
//
//	queries:
//	  - name: find-parser
//	    kind: symbol-search
//	    params: {name_filter: "Parser::parse"}
//	  - name: parser-calls
//	    kind: call-graph
//	    entity_from: find-parser
type Plan struct {
	Queries []domain.AnalysisQuery `yaml:"queries"`
}

// LoadPlan reads a YAML query plan. Only names are checked; a malformed
// query fails on its own when the plan runs.
func LoadPlan(path string) ([]domain.AnalysisQuery, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-supplied configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read query plan: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", scribeerrors.ErrConfigInvalidQuery, path, err)
	}
	if err := CheckNames(plan.Queries); err != nil {
		return nil, fmt.Errorf("%w: %w", scribeerrors.ErrConfigInvalidQuery, err)
	}
	return plan.Queries, nil
}

// Select returns the named queries in the requested order. A query chained
// with entity_from pulls in its source ahead of it when not selected; an
// undefined source is left for RunAll to report. No names selects every
// query.
func Select(all []domain.AnalysisQuery, names []string) ([]domain.AnalysisQuery, error) {
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]domain.AnalysisQuery, len(all))
	for _, q := range all {
		byName[q.Name] = q
	}

	selected := make([]domain.AnalysisQuery, 0, len(names))
	seen := make(map[string]bool, len(names))
	add := func(name string) error {
		if seen[name] {
			return nil
		}
		q, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: %s", scribeerrors.ErrQueryNotFound, name)
		}
		seen[name] = true
		selected = append(selected, q)
		return nil
	}

	for _, name := range names {
		if q, ok := byName[name]; ok && q.EntityFrom != "" {
			if _, known := byName[q.EntityFrom]; known {
				_ = add(q.EntityFrom)
			}
		}
		if err := add(name); err != nil {
			return nil, err
		}
	}
	return selected, nil
}
