// Package constants provides centralized constant values used throughout scribe.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by scribe for organizing data.
const (
	// ScribeHome is the hidden directory name where scribe stores global state.
	// This directory is created in the user's home directory.
	ScribeHome = ".scribe"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// StateDir is the directory holding the run ledger and index memo database.
	StateDir = "state"

	// ArtifactsDir is the directory under --out where query artifacts are written.
	ArtifactsDir = "artifacts"

	// IndexDir is the directory under --out where index databases are kept.
	IndexDir = "index"

	// CatalogDir is the bleve index over the artifact set of a run.
	CatalogDir = "catalog.bleve"

	// StagingDir holds per-strategy record journals before promotion.
	StagingDir = "staging"
)

// Timeout configurations for the external collaborators.
const (
	// DefaultToolchainTimeout bounds each compiler query.
	DefaultToolchainTimeout = 30 * time.Second

	// DefaultBuildTimeout bounds a single build attempt.
	DefaultBuildTimeout = 2 * time.Hour

	// DefaultIndexTimeout bounds the indexing engine run.
	DefaultIndexTimeout = time.Hour

	// DefaultQueryTimeout bounds each analysis query.
	DefaultQueryTimeout = 15 * time.Minute

	// DefaultPublishTimeout bounds the artifact upload.
	DefaultPublishTimeout = 10 * time.Minute
)

// Pipeline limits.
const (
	// MaxFallbackRetries is the fixed retry budget of the fallback controller.
	// The two recording strategies are different mechanisms, so one retry is all
	// that is meaningful.
	MaxFallbackRetries = 1

	// DefaultQueryWorkers is the default size of the query worker pool.
	DefaultQueryWorkers = 4

	// MaxQueryWorkers caps query.workers.
	MaxQueryWorkers = 64
)

// Schema version constants for persisted documents.
const (
	// SnapshotSchemaVersion is the version of environment.json.
	SnapshotSchemaVersion = "1.0"

	// RunSchemaVersion is the version of run.json and ledger entries.
	RunSchemaVersion = "1.0"
)
