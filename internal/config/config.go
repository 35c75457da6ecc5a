// Package config provides layered configuration for scribe.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (applied by the caller before Validate)
//  2. Environment variables (SCRIBE_* prefix)
//  3. Explicit config file (--config)
//  4. Project config (<project>/.scribe.yaml)
//  5. Global config (~/.scribe/config.yaml)
//  6. Built-in defaults
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for scribe.
type Config struct {
	// Toolchain selects the compiler queried for the environment snapshot.
	Toolchain ToolchainConfig `yaml:"toolchain" mapstructure:"toolchain"`

	// Build describes how the project is built.
	Build BuildConfig `yaml:"build" mapstructure:"build"`

	// Instrumentation configures the two recording strategies.
	Instrumentation InstrumentationConfig `yaml:"instrumentation" mapstructure:"instrumentation"`

	// Index configures the indexing engine.
	Index IndexConfig `yaml:"index" mapstructure:"index"`

	// Query configures the analysis query tools and definitions.
	Query QueryConfig `yaml:"query" mapstructure:"query"`

	// Publish configures optional artifact upload.
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`

	// Store configures the run ledger.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Run holds per-run behavior not tied to a stage.
	Run RunConfig `yaml:"run" mapstructure:"run"`
}

// ToolchainConfig selects the compiler.
type ToolchainConfig struct {
	// Compiler is the compiler executable queried for its resource directory
	// and include search paths.
	// Default: "clang"
	Compiler string `yaml:"compiler" mapstructure:"compiler"`

	// Timeout bounds each compiler query.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BuildConfig describes the project build.
type BuildConfig struct {
	// Command is the build script argv, run from the project directory.
	// Default: ["make"]
	Command []string `yaml:"command" mapstructure:"command"`

	// JobsArgs is appended to Command; "{jobs}" is replaced with the jobs hint.
	// Default: ["-j", "{jobs}"]
	JobsArgs []string `yaml:"jobs_args" mapstructure:"jobs_args"`

	// Jobs is the default parallelism hint. Zero means one per CPU.
	Jobs int `yaml:"jobs" mapstructure:"jobs"`

	// Timeout bounds a single build attempt.
	// Default: 2 hours
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// InstrumentationConfig configures compile-command recording.
type InstrumentationConfig struct {
	// Wrapper is the primary strategy: a wrapper prepended to the build argv.
	// "{record}" is the journal path and "{action}" the action mode.
	// Default: ["bear", "--output", "{record}", "--"]
	Wrapper []string `yaml:"wrapper" mapstructure:"wrapper"`

	// Action is the wrapper's action mode: pass-through, record or embed.
	// Default: "record"
	Action string `yaml:"action" mapstructure:"action"`

	// ShimCC and ShimCXX are compiler shims substituted for CC/CXX by the
	// alternative strategy. Leaving both empty disables the fallback retry.
	ShimCC  string `yaml:"shim_cc" mapstructure:"shim_cc"`
	ShimCXX string `yaml:"shim_cxx" mapstructure:"shim_cxx"`

	// ShimJournalVar names the variable through which shims learn the journal path.
	// Default: "SCRIBE_SHIM_JOURNAL"
	ShimJournalVar string `yaml:"shim_journal_var" mapstructure:"shim_journal_var"`

	// ShimEnv is exported to shimmed builds in addition to the snapshot.
	ShimEnv map[string]string `yaml:"shim_env" mapstructure:"shim_env"`
}

// IndexConfig configures the indexing engine.
type IndexConfig struct {
	// Engine is the indexing engine argv prefix.
	// Default: ["scribe-indexer"]
	Engine []string `yaml:"engine" mapstructure:"engine"`

	// Timeout bounds the engine run.
	// Default: 1 hour
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// QueryDefinition declares a named analysis query.
type QueryDefinition struct {
	Name            string `yaml:"name" mapstructure:"name"`
	Kind            string `yaml:"kind" mapstructure:"kind"`
	EntityFrom      string `yaml:"entity_from,omitempty" mapstructure:"entity_from"`
	EntityID        string `yaml:"entity_id,omitempty" mapstructure:"entity_id"`
	NameFilter      string `yaml:"name_filter,omitempty" mapstructure:"name_filter"`
	HopLength       int    `yaml:"hop_length,omitempty" mapstructure:"hop_length"`
	ReachableFrom   string `yaml:"reachable_from,omitempty" mapstructure:"reachable_from"`
	IncludeImplicit bool   `yaml:"include_implicit,omitempty" mapstructure:"include_implicit"`
}

// QueryConfig configures the analysis query runner.
type QueryConfig struct {
	// Tools maps a query kind to its tool argv prefix.
	Tools map[string][]string `yaml:"tools" mapstructure:"tools"`

	// Workers bounds concurrently running query tools.
	// Default: 4
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Timeout bounds each query.
	// Default: 15 minutes
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Plan is an optional YAML query plan file, relative to the project directory.
	Plan string `yaml:"plan" mapstructure:"plan"`

	// Definitions are queries declared inline.
	Definitions []QueryDefinition `yaml:"definitions" mapstructure:"definitions"`
}

// PublishConfig configures artifact upload to S3-compatible storage.
type PublishConfig struct {
	// Enabled turns publication on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Region   string `yaml:"region" mapstructure:"region"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`

	// AccessKeyEnv and SecretKeyEnv name the variables holding credentials.
	// Credentials are never read from config files.
	// Defaults: "SCRIBE_PUBLISH_ACCESS_KEY", "SCRIBE_PUBLISH_SECRET_KEY"
	AccessKeyEnv string `yaml:"access_key_env" mapstructure:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env" mapstructure:"secret_key_env"`

	// Secure selects HTTPS.
	// Default: true
	Secure bool `yaml:"secure" mapstructure:"secure"`

	// CreateBucket creates the bucket when missing.
	CreateBucket bool `yaml:"create_bucket" mapstructure:"create_bucket"`

	// Timeout bounds the whole upload.
	// Default: 10 minutes
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StoreConfig configures the run ledger under <out>/state.
type StoreConfig struct {
	// SyncWrites fsyncs every ledger write.
	SyncWrites bool `yaml:"sync_writes" mapstructure:"sync_writes"`

	// HistoryLimit is the default number of runs listed by "scribe history".
	// Default: 20
	HistoryLimit int `yaml:"history_limit" mapstructure:"history_limit"`
}

// RunConfig holds run-wide settings.
type RunConfig struct {
	// LockTimeout is how long a run waits for another run to release the
	// output directory. Zero fails immediately.
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`

	// Catalog indexes artifacts for "scribe search".
	// Default: true
	Catalog bool `yaml:"catalog" mapstructure:"catalog"`

	// Metrics writes metrics.prom.
	// Default: true
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
}
