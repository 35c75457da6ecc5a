package constants_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/scribe/internal/constants"
)

func TestQueryKind_IsGraph(t *testing.T) {
	tests := []struct {
		kind constants.QueryKind
		want bool
	}{
		{constants.QueryKindDivergence, false},
		{constants.QueryKindSymbolSearch, false},
		{constants.QueryKindUnsafeCast, false},
		{constants.QueryKindCallGraph, true},
		{constants.QueryKindReferenceGraph, true},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.kind.IsGraph())
		})
	}
}

func TestQueryKinds_AllDistinct(t *testing.T) {
	seen := make(map[constants.QueryKind]bool)
	for _, k := range constants.QueryKinds() {
		assert.False(t, seen[k], "duplicate kind %s", k)
		seen[k] = true
	}
	assert.Len(t, seen, 5)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "succeeded", constants.RunStatusSucceeded.String())
	assert.Equal(t, "instrumented", constants.BuildModeInstrumented.String())
	assert.Equal(t, "shim", constants.StrategyShim.String())
	assert.Equal(t, "exhausted", constants.FallbackStateExhausted.String())
	assert.Equal(t, "index", constants.StageIndex.String())
	assert.Equal(t, "snapshot", constants.ArtifactKindSnapshot.String())
	assert.Equal(t, "graph", constants.ArtifactKindGraph.String())
}
