package domain

import (
	"github.com/mrz1836/scribe/internal/constants"
)

// QueryParams are the optional, kind-specific parameters of a query.
type QueryParams struct {
	// EntityID selects the target entity of graph queries.
	EntityID string `json:"entity_id,omitempty" yaml:"entity_id,omitempty" mapstructure:"entity_id"`

	// NameFilter is the symbol-search predicate.
	NameFilter string `json:"name_filter,omitempty" yaml:"name_filter,omitempty" mapstructure:"name_filter"`

	// HopLength bounds reference-graph extraction.
	HopLength int `json:"hop_length,omitempty" yaml:"hop_length,omitempty" mapstructure:"hop_length"`

	// ReachableFrom restricts call-graph edges to those reachable from this entity.
	ReachableFrom string `json:"reachable_from,omitempty" yaml:"reachable_from,omitempty" mapstructure:"reachable_from"`

	// IncludeImplicit makes unsafe-cast scans report implicit casts too.
	IncludeImplicit bool `json:"include_implicit,omitempty" yaml:"include_implicit,omitempty" mapstructure:"include_implicit"`
}

// AnalysisQuery is a named, independently schedulable read-only query.
type AnalysisQuery struct {
	Name   string              `json:"name" yaml:"name" mapstructure:"name"`
	Kind   constants.QueryKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Params QueryParams         `json:"params" yaml:"params" mapstructure:"params"`

	// EntityFrom names a symbol-search query whose first result supplies
	// Params.EntityID. The chained query runs after its source.
	EntityFrom string `json:"entity_from,omitempty" yaml:"entity_from,omitempty" mapstructure:"entity_from"`
}

// ArtifactExt returns the artifact file extension for the query.
func (q AnalysisQuery) ArtifactExt() string {
	if q.Kind.IsGraph() {
		return "dot"
	}
	return "txt"
}

// ArtifactName returns the declared artifact file name, {name}.{ext}.
func (q AnalysisQuery) ArtifactName() string {
	return q.Name + "." + q.ArtifactExt()
}

// QueryOutcome is the per-query slot of a RunAll result: either an artifact
// or an error, never both.
type QueryOutcome struct {
	Name       string              `json:"name"`
	Kind       constants.QueryKind `json:"kind"`
	Success    bool                `json:"success"`
	Artifact   *Artifact           `json:"artifact,omitempty"`
	EntityID   string              `json:"entity_id,omitempty"`
	DurationMs int64               `json:"duration_ms"`
	Error      string              `json:"error,omitempty"`

	// Err keeps the typed error for errors.Is checks within a process.
	Err error `json:"-"`
}
