package config

import (
	"github.com/mrz1836/scribe/internal/constants"
)

// Default tool names.
const (
	DefaultCompiler       = "clang"
	DefaultAction         = "record"
	DefaultShimJournalVar = "SCRIBE_SHIM_JOURNAL"
	DefaultAccessKeyEnv   = "SCRIBE_PUBLISH_ACCESS_KEY"
	DefaultSecretKeyEnv   = "SCRIBE_PUBLISH_SECRET_KEY"
	DefaultHistoryLimit   = 20
)

// ValidActions lists the wrapper action modes.
//
//nolint:gochecknoglobals // lookup table
var ValidActions = []string{"pass-through", "record", "embed"}

// DefaultQueryTools returns the default tool argv per query kind.
func DefaultQueryTools() map[string][]string {
	tools := make(map[string][]string)
	for _, kind := range constants.QueryKinds() {
		tools[kind.String()] = []string{"scribe-query", kind.String()}
	}
	return tools
}

// DefaultConfig returns a Config populated with built-in defaults. It
// mirrors setDefaults.
func DefaultConfig() *Config {
	return &Config{
		Toolchain: ToolchainConfig{
			Compiler: DefaultCompiler,
			Timeout:  constants.DefaultToolchainTimeout,
		},
		Build: BuildConfig{
			Command:  []string{"make"},
			JobsArgs: []string{"-j", "{jobs}"},
			Timeout:  constants.DefaultBuildTimeout,
		},
		Instrumentation: InstrumentationConfig{
			Wrapper:        []string{"bear", "--output", "{record}", "--"},
			Action:         DefaultAction,
			ShimJournalVar: DefaultShimJournalVar,
			ShimEnv:        map[string]string{},
		},
		Index: IndexConfig{
			Engine:  []string{"scribe-indexer"},
			Timeout: constants.DefaultIndexTimeout,
		},
		Query: QueryConfig{
			Tools:   DefaultQueryTools(),
			Workers: constants.DefaultQueryWorkers,
			Timeout: constants.DefaultQueryTimeout,
		},
		Publish: PublishConfig{
			AccessKeyEnv: DefaultAccessKeyEnv,
			SecretKeyEnv: DefaultSecretKeyEnv,
			Secure:       true,
			Timeout:      constants.DefaultPublishTimeout,
		},
		Store: StoreConfig{
			HistoryLimit: DefaultHistoryLimit,
		},
		Run: RunConfig{
			Catalog: true,
			Metrics: true,
		},
	}
}
