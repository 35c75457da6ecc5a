package constants

// RunStatus represents the state of a PipelineRun.
// Status values use snake_case for JSON serialization compatibility.
type RunStatus string

// Run status constants.
const (
	// RunStatusRunning indicates stages are still executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates the index was built and all queries were attempted.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates no usable build or index was produced.
	RunStatusFailed RunStatus = "failed"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// BuildMode distinguishes the two passes of the build orchestrator.
type BuildMode string

// Build mode constants.
const (
	// BuildModeUninstrumented runs the project's build directly as a correctness gate.
	BuildModeUninstrumented BuildMode = "uninstrumented"

	// BuildModeInstrumented runs the build wrapped by a recording strategy.
	BuildModeInstrumented BuildMode = "instrumented"
)

// String returns the string representation of the BuildMode.
func (m BuildMode) String() string {
	return string(m)
}

// RecordingStrategy names how compiler invocations are captured.
type RecordingStrategy string

// Recording strategy constants.
const (
	// StrategyDirect runs the build with no recording (uninstrumented mode).
	StrategyDirect RecordingStrategy = "direct"

	// StrategyPrimary wraps the build process with the instrumentation collaborator.
	StrategyPrimary RecordingStrategy = "primary"

	// StrategyShim points the build's compiler variables at a recording shim.
	StrategyShim RecordingStrategy = "shim"
)

// String returns the string representation of the RecordingStrategy.
func (s RecordingStrategy) String() string {
	return string(s)
}

// FallbackState is the state of the fallback controller.
//
//	Primary → Retrying
//	Retrying → Recovered, Exhausted
type FallbackState string

// Fallback state constants.
const (
	// FallbackStatePrimary means the primary instrumented build failed or produced no record.
	FallbackStatePrimary FallbackState = "primary"

	// FallbackStateRetrying means the alternative strategy is being attempted.
	FallbackStateRetrying FallbackState = "retrying"

	// FallbackStateRecovered means a non-empty compilation record now exists.
	FallbackStateRecovered FallbackState = "recovered"

	// FallbackStateExhausted means both strategies failed.
	FallbackStateExhausted FallbackState = "exhausted"
)

// String returns the string representation of the FallbackState.
func (s FallbackState) String() string {
	return string(s)
}

// QueryKind identifies which query tool contract an AnalysisQuery uses.
type QueryKind string

// Query kind constants.
const (
	// QueryKindDivergence finds entities represented differently across translation units.
	QueryKindDivergence QueryKind = "divergence"

	// QueryKindSymbolSearch returns declarations/definitions matching a name filter.
	QueryKindSymbolSearch QueryKind = "symbol-search"

	// QueryKindUnsafeCast flags explicit narrowing or reinterpreting casts.
	QueryKindUnsafeCast QueryKind = "unsafe-cast"

	// QueryKindCallGraph extracts call edges around an entity.
	QueryKindCallGraph QueryKind = "call-graph"

	// QueryKindReferenceGraph extracts the bounded reference neighborhood of an entity.
	QueryKindReferenceGraph QueryKind = "reference-graph"
)

// String returns the string representation of the QueryKind.
func (k QueryKind) String() string {
	return string(k)
}

// IsGraph reports whether the kind produces a graph-description artifact.
func (k QueryKind) IsGraph() bool {
	return k == QueryKindCallGraph || k == QueryKindReferenceGraph
}

// QueryKinds returns all supported query kinds in display order.
func QueryKinds() []QueryKind {
	return []QueryKind{
		QueryKindDivergence,
		QueryKindSymbolSearch,
		QueryKindUnsafeCast,
		QueryKindCallGraph,
		QueryKindReferenceGraph,
	}
}

// ArtifactKind classifies artifacts in a run's artifact set.
type ArtifactKind string

// Artifact kind constants.
const (
	ArtifactKindSnapshot ArtifactKind = "snapshot"
	ArtifactKindRecord   ArtifactKind = "record"
	ArtifactKindText     ArtifactKind = "text"
	ArtifactKindGraph    ArtifactKind = "graph"
	ArtifactKindReport   ArtifactKind = "report"
	ArtifactKindMetrics  ArtifactKind = "metrics"
)

// String returns the string representation of the ArtifactKind.
func (k ArtifactKind) String() string {
	return string(k)
}

// StageName identifies a pipeline stage in the run history.
type StageName string

// Stage name constants, in execution order.
const (
	StageSnapshot StageName = "snapshot"
	StageBuild    StageName = "build"
	StageFallback StageName = "fallback"
	StageIndex    StageName = "index"
	StageQueries  StageName = "queries"
	StagePublish  StageName = "publish"
)

// String returns the string representation of the StageName.
func (s StageName) String() string {
	return string(s)
}
