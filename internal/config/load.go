package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/scribe/internal/errors"
)

// LoadOptions selects the file layers to read.
type LoadOptions struct {
	// ProjectDir is searched for .scribe.yaml. Empty skips the project layer.
	ProjectDir string

	// ConfigFile is an explicit file merged over the project layer. A
	// missing explicit file is an error.
	ConfigFile string

	// SkipGlobal skips ~/.scribe/config.yaml.
	SkipGlobal bool
}

// newViperInstance creates a Viper instance with defaults and SCRIBE_* env binding.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// Load reads configuration from all layers and validates it.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	v := newViperInstance()

	if !opts.SkipGlobal {
		if err := loadGlobalConfig(v); err != nil {
			return nil, err
		}
	}

	if opts.ProjectDir != "" {
		if err := mergeIfExists(v, ProjectConfigPath(opts.ProjectDir)); err != nil {
			return nil, errors.Wrap(err, "failed to read project config file")
		}
	}

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, errors.Wrapf(err, "config file %s", opts.ConfigFile)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", opts.ConfigFile)
		}
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "config").
		Str("compiler", cfg.Toolchain.Compiler).
		Strs("build.command", cfg.Build.Command).
		Dur("build.timeout", cfg.Build.Timeout).
		Int("query.workers", cfg.Query.Workers).
		Bool("publish.enabled", cfg.Publish.Enabled).
		Msg("configuration loaded")

	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths. Either path
// can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		if err := mergeIfExists(v, globalConfigPath); err != nil {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}
	if projectConfigPath != "" {
		if err := mergeIfExists(v, projectConfigPath); err != nil {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// loadGlobalConfig merges ~/.scribe/config.yaml when present.
func loadGlobalConfig(v *viper.Viper) error {
	path, err := GlobalConfigPath()
	if err != nil {
		// No home directory; nothing to merge.
		return nil //nolint:nilerr // a missing home is not a configuration problem
	}
	if err := mergeIfExists(v, path); err != nil {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

func mergeIfExists(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil //nolint:nilerr // optional layer
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return err
	}
	return nil
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	mergeToolDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// mergeToolDefaults fills in the default tool of every query kind no layer
// configured.
func mergeToolDefaults(cfg *Config) {
	if cfg.Query.Tools == nil {
		cfg.Query.Tools = make(map[string][]string)
	}
	for kind, argv := range DefaultQueryTools() {
		if _, ok := cfg.Query.Tools[kind]; !ok {
			cfg.Query.Tools[kind] = argv
		}
	}
}

// setDefaults mirrors DefaultConfig. Keys must match the mapstructure tags
// so AutomaticEnv can resolve them.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("toolchain.compiler", d.Toolchain.Compiler)
	v.SetDefault("toolchain.timeout", d.Toolchain.Timeout.String())

	v.SetDefault("build.command", d.Build.Command)
	v.SetDefault("build.jobs_args", d.Build.JobsArgs)
	v.SetDefault("build.jobs", d.Build.Jobs)
	v.SetDefault("build.timeout", d.Build.Timeout.String())

	v.SetDefault("instrumentation.wrapper", d.Instrumentation.Wrapper)
	v.SetDefault("instrumentation.action", d.Instrumentation.Action)
	v.SetDefault("instrumentation.shim_cc", "")
	v.SetDefault("instrumentation.shim_cxx", "")
	v.SetDefault("instrumentation.shim_journal_var", d.Instrumentation.ShimJournalVar)
	v.SetDefault("instrumentation.shim_env", map[string]string{})

	v.SetDefault("index.engine", d.Index.Engine)
	v.SetDefault("index.timeout", d.Index.Timeout.String())

	// One key per kind: viper does not merge a map default with a map from
	// a config file.
	for kind, argv := range d.Query.Tools {
		v.SetDefault("query.tools."+kind, argv)
	}
	v.SetDefault("query.workers", d.Query.Workers)
	v.SetDefault("query.timeout", d.Query.Timeout.String())
	v.SetDefault("query.plan", "")
	v.SetDefault("query.definitions", []map[string]any{})

	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.access_key_env", d.Publish.AccessKeyEnv)
	v.SetDefault("publish.secret_key_env", d.Publish.SecretKeyEnv)
	v.SetDefault("publish.secure", d.Publish.Secure)
	v.SetDefault("publish.create_bucket", false)
	v.SetDefault("publish.timeout", d.Publish.Timeout.String())

	v.SetDefault("store.sync_writes", false)
	v.SetDefault("store.history_limit", d.Store.HistoryLimit)

	v.SetDefault("run.lock_timeout", "0s")
	v.SetDefault("run.catalog", d.Run.Catalog)
	v.SetDefault("run.metrics", d.Run.Metrics)
}

// viperDecoderOption handles duration strings and comma separated argv
// values coming from SCRIBE_* variables.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}

// ProjectConfigExists reports whether projectDir carries a .scribe.yaml.
func ProjectConfigExists(projectDir string) bool {
	_, err := os.Stat(ProjectConfigPath(projectDir))
	return err == nil
}

// SourceNames lists the file layers Load would read, for display.
func SourceNames(opts LoadOptions) []string {
	var sources []string
	if !opts.SkipGlobal {
		if path, err := GlobalConfigPath(); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				sources = append(sources, path)
			}
		}
	}
	if opts.ProjectDir != "" && ProjectConfigExists(opts.ProjectDir) {
		sources = append(sources, ProjectConfigPath(opts.ProjectDir))
	}
	if opts.ConfigFile != "" {
		sources = append(sources, opts.ConfigFile)
	}
	return append(sources, "env:SCRIBE_*", "defaults")
}
