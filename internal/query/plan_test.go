package query_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
	scribeerrors "github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/query"
)

const planYAML = `queries:
  - name: odr
    kind: divergence
  - name: find-parse
    kind: symbol-search
    params:
      name_filter: "Parser::parse"
  - name: parse-calls
    kind: call-graph
    entity_from: find-parse
    params:
      reachable_from: "c:@F@main"
  - name: casts
    kind: unsafe-cast
    params:
      include_implicit: true
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPlan(t *testing.T) {
	queries, err := query.LoadPlan(writePlan(t, planYAML))
	require.NoError(t, err)
	require.Len(t, queries, 4)

	assert.Equal(t, "Parser::parse", queries[1].Params.NameFilter)
	assert.Equal(t, "find-parse", queries[2].EntityFrom)
	assert.Equal(t, "c:@F@main", queries[2].Params.ReachableFrom)
	assert.True(t, queries[3].Params.IncludeImplicit)
	assert.Equal(t, constants.QueryKindUnsafeCast, queries[3].Kind)
}

func TestLoadPlan_Invalid(t *testing.T) {
	tests := map[string]struct {
		content string
		want    error
	}{
		"bad yaml":  {"queries: [", scribeerrors.ErrConfigInvalidQuery},
		"duplicate": {"queries:\n  - name: x\n    kind: divergence\n  - name: x\n    kind: divergence\n", scribeerrors.ErrDuplicateQuery},
		"no name":   {"queries:\n  - kind: divergence\n", scribeerrors.ErrInvalidArgument},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := query.LoadPlan(writePlan(t, tc.content))
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := query.LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadPlan_MalformedQueriesDeferred(t *testing.T) {
	queries, err := query.LoadPlan(writePlan(t, `queries:
  - name: casts
    kind: unsafe-cast
  - name: bad-graph
    kind: call-graph
  - name: taint
    kind: taint
  - name: loop
    kind: call-graph
    entity_from: loop
`))
	require.NoError(t, err)
	require.Len(t, queries, 4)

	require.NoError(t, query.Validate(queries[0]))
	require.ErrorIs(t, query.Validate(queries[1]), scribeerrors.ErrMissingQueryParam)
	require.ErrorIs(t, query.Validate(queries[2]), scribeerrors.ErrUnknownQueryKind)
}

func TestCheckNames(t *testing.T) {
	require.NoError(t, query.CheckNames(nil))
	require.NoError(t, query.CheckNames([]domain.AnalysisQuery{{Name: "a"}, {Name: "b", Kind: "taint"}}))
	require.ErrorIs(t, query.CheckNames([]domain.AnalysisQuery{{Name: "a"}, {Name: "a"}}), scribeerrors.ErrDuplicateQuery)
	require.ErrorIs(t, query.CheckNames([]domain.AnalysisQuery{{Name: ""}}), scribeerrors.ErrInvalidArgument)
}

func TestSelect(t *testing.T) {
	all, err := query.LoadPlan(writePlan(t, planYAML))
	require.NoError(t, err)

	t.Run("empty selects all", func(t *testing.T) {
		got, err := query.Select(all, nil)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("requested order", func(t *testing.T) {
		got, err := query.Select(all, []string{"casts", "odr"})
		require.NoError(t, err)
		assert.Equal(t, []string{"casts", "odr"}, names(got))
	})

	t.Run("chain pulls in source", func(t *testing.T) {
		got, err := query.Select(all, []string{"parse-calls", "find-parse"})
		require.NoError(t, err)
		assert.Equal(t, []string{"find-parse", "parse-calls"}, names(got))
	})

	t.Run("undefined source left to runner", func(t *testing.T) {
		orphan := []domain.AnalysisQuery{all[0], {Name: "orphan", Kind: constants.QueryKindCallGraph, EntityFrom: "ghost"}}
		got, err := query.Select(orphan, []string{"orphan"})
		require.NoError(t, err)
		assert.Equal(t, []string{"orphan"}, names(got))
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := query.Select(all, []string{"odr", "ghost"})
		require.ErrorIs(t, err, scribeerrors.ErrQueryNotFound)
	})
}

func names(queries []domain.AnalysisQuery) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		out = append(out, q.Name)
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		query domain.AnalysisQuery
		want  error
	}{
		{"divergence ok", domain.AnalysisQuery{Name: "d", Kind: constants.QueryKindDivergence}, nil},
		{"empty name", domain.AnalysisQuery{Kind: constants.QueryKindDivergence}, scribeerrors.ErrInvalidArgument},
		{"graph with id", domain.AnalysisQuery{Name: "g", Kind: constants.QueryKindCallGraph, Params: domain.QueryParams{EntityID: "c:@F@f"}}, nil},
		{"graph both", domain.AnalysisQuery{Name: "g", Kind: constants.QueryKindCallGraph, EntityFrom: "s", Params: domain.QueryParams{EntityID: "c:@F@f"}}, scribeerrors.ErrInvalidArgument},
		{"negative hops", domain.AnalysisQuery{Name: "g", Kind: constants.QueryKindReferenceGraph, Params: domain.QueryParams{EntityID: "e", HopLength: -1}}, scribeerrors.ErrValueOutOfRange},
		{"search chained", domain.AnalysisQuery{Name: "s", Kind: constants.QueryKindSymbolSearch, EntityFrom: "x", Params: domain.QueryParams{NameFilter: "f"}}, scribeerrors.ErrInvalidArgument},
		{"cast chained", domain.AnalysisQuery{Name: "c", Kind: constants.QueryKindUnsafeCast, EntityFrom: "x"}, scribeerrors.ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := query.Validate(tc.query)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}
