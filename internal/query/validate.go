package query

import (
	"fmt"
	"slices"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/fileutil"
)

// Validate checks a query's parameters in isolation. It never runs a process.
func Validate(q domain.AnalysisQuery) error {
	if _, err := fileutil.SafeJoin("artifacts", q.ArtifactName()); err != nil || q.Name == "" {
		return fmt.Errorf("%w: invalid query name %q", scribeerrors.ErrInvalidArgument, q.Name)
	}
	if !slices.Contains(constants.QueryKinds(), q.Kind) {
		return fmt.Errorf("%w: %q", scribeerrors.ErrUnknownQueryKind, q.Kind)
	}

	p := q.Params
	switch q.Kind {
	case constants.QueryKindSymbolSearch:
		if p.NameFilter == "" {
			return fmt.Errorf("%w: %s requires name_filter", scribeerrors.ErrMissingQueryParam, q.Kind)
		}
		if q.EntityFrom != "" {
			return fmt.Errorf("%w: %s does not take entity_from", scribeerrors.ErrInvalidArgument, q.Kind)
		}

	case constants.QueryKindCallGraph, constants.QueryKindReferenceGraph:
		if p.EntityID == "" && q.EntityFrom == "" {
			return fmt.Errorf("%w: %s requires entity_id or entity_from", scribeerrors.ErrMissingQueryParam, q.Kind)
		}
		if p.EntityID != "" && q.EntityFrom != "" {
			return fmt.Errorf("%w: entity_id and entity_from are exclusive", scribeerrors.ErrInvalidArgument)
		}
		if p.HopLength < 0 {
			return fmt.Errorf("%w: hop_length %d", scribeerrors.ErrValueOutOfRange, p.HopLength)
		}

	case constants.QueryKindDivergence, constants.QueryKindUnsafeCast:
		if q.EntityFrom != "" {
			return fmt.Errorf("%w: %s does not take entity_from", scribeerrors.ErrInvalidArgument, q.Kind)
		}
	}
	return nil
}

// CheckNames rejects a query set whose names cannot key its results: an
// empty or repeated name. Parameters and chaining are not checked here;
// RunAll reports those against the offending query alone.
func CheckNames(queries []domain.AnalysisQuery) error {
	seen := make(map[string]bool, len(queries))
	for i, q := range queries {
		if q.Name == "" {
			return fmt.Errorf("%w: query %d has no name", scribeerrors.ErrInvalidArgument, i)
		}
		if seen[q.Name] {
			return fmt.Errorf("%w: %s", scribeerrors.ErrDuplicateQuery, q.Name)
		}
		seen[q.Name] = true
	}
	return nil
}

func checkSource(q domain.AnalysisQuery, byName map[string]domain.AnalysisQuery) error {
	if q.EntityFrom == "" {
		return nil
	}
	if q.EntityFrom == q.Name {
		return fmt.Errorf("%w: %s chains from itself", scribeerrors.ErrQueryCycle, q.Name)
	}
	src, ok := byName[q.EntityFrom]
	if !ok {
		return fmt.Errorf("%w: entity_from %s", scribeerrors.ErrQueryNotFound, q.EntityFrom)
	}
	if src.Kind != constants.QueryKindSymbolSearch {
		return fmt.Errorf("%w: entity_from %s is %s, want %s",
			scribeerrors.ErrInvalidArgument, src.Name, src.Kind, constants.QueryKindSymbolSearch)
	}
	return nil
}
