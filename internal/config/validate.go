package config

import (
	"slices"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	for _, check := range []func(*Config) error{
		validateToolchain,
		validateBuild,
		validateInstrumentation,
		validateIndex,
		validateQuery,
		validatePublish,
		validateRun,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateToolchain(cfg *Config) error {
	if cfg.Toolchain.Compiler == "" {
		return errors.Wrap(errors.ErrConfigInvalidToolchain, "toolchain.compiler must not be empty")
	}
	if cfg.Toolchain.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidToolchain,
			"toolchain.timeout must be positive, got %s", cfg.Toolchain.Timeout)
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if len(cfg.Build.Command) == 0 || cfg.Build.Command[0] == "" {
		return errors.Wrap(errors.ErrConfigInvalidBuild, "build.command must not be empty")
	}
	if cfg.Build.Jobs < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidBuild,
			"build.jobs cannot be negative, got %d", cfg.Build.Jobs)
	}
	if cfg.Build.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidBuild,
			"build.timeout must be positive, got %s", cfg.Build.Timeout)
	}
	return nil
}

func validateInstrumentation(cfg *Config) error {
	in := cfg.Instrumentation
	if len(in.Wrapper) == 0 || in.Wrapper[0] == "" {
		return errors.Wrap(errors.ErrConfigInvalidInstrumentation, "instrumentation.wrapper must not be empty")
	}
	if !slices.Contains(in.Wrapper, "{record}") {
		return errors.Wrap(errors.ErrConfigInvalidInstrumentation,
			"instrumentation.wrapper must contain the {record} placeholder")
	}
	if !slices.Contains(ValidActions, in.Action) {
		return errors.Wrapf(errors.ErrConfigInvalidInstrumentation,
			"instrumentation.action must be one of %v, got %q", ValidActions, in.Action)
	}
	if (in.ShimCC != "" || in.ShimCXX != "") && in.ShimJournalVar == "" {
		return errors.Wrap(errors.ErrConfigInvalidInstrumentation,
			"instrumentation.shim_journal_var is required when a shim is configured")
	}
	return nil
}

func validateIndex(cfg *Config) error {
	if len(cfg.Index.Engine) == 0 || cfg.Index.Engine[0] == "" {
		return errors.Wrap(errors.ErrConfigInvalidIndex, "index.engine must not be empty")
	}
	if cfg.Index.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidIndex,
			"index.timeout must be positive, got %s", cfg.Index.Timeout)
	}
	return nil
}

func validateQuery(cfg *Config) error {
	q := cfg.Query
	if q.Workers < 1 || q.Workers > constants.MaxQueryWorkers {
		return errors.Wrapf(errors.ErrConfigInvalidQuery,
			"query.workers must be between 1 and %d, got %d", constants.MaxQueryWorkers, q.Workers)
	}
	if q.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidQuery,
			"query.timeout must be positive, got %s", q.Timeout)
	}
	for kind, argv := range q.Tools {
		if !isQueryKind(kind) {
			return errors.Wrapf(errors.ErrConfigInvalidQuery, "query.tools: unknown kind %q", kind)
		}
		if len(argv) == 0 || argv[0] == "" {
			return errors.Wrapf(errors.ErrConfigInvalidQuery, "query.tools.%s must not be empty", kind)
		}
	}
	seen := make(map[string]bool, len(q.Definitions))
	for i, def := range q.Definitions {
		if def.Name == "" {
			return errors.Wrapf(errors.ErrConfigInvalidQuery, "query.definitions[%d].name must not be empty", i)
		}
		if seen[def.Name] {
			return errors.Wrapf(errors.ErrConfigInvalidQuery, "query.definitions[%d]: duplicate name %q", i, def.Name)
		}
		seen[def.Name] = true
	}
	return nil
}

func validatePublish(cfg *Config) error {
	p := cfg.Publish
	if !p.Enabled {
		return nil
	}
	if p.Endpoint == "" {
		return errors.Wrap(errors.ErrConfigInvalidPublish, "publish.endpoint is required when publish is enabled")
	}
	if p.Bucket == "" {
		return errors.Wrap(errors.ErrConfigInvalidPublish, "publish.bucket is required when publish is enabled")
	}
	if p.AccessKeyEnv == "" || p.SecretKeyEnv == "" {
		return errors.Wrap(errors.ErrConfigInvalidPublish, "publish.access_key_env and publish.secret_key_env must be set")
	}
	if p.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidPublish,
			"publish.timeout must be positive, got %s", p.Timeout)
	}
	return nil
}

func validateRun(cfg *Config) error {
	if cfg.Run.LockTimeout < 0 {
		return errors.Wrapf(errors.ErrValueOutOfRange,
			"run.lock_timeout cannot be negative, got %s", cfg.Run.LockTimeout)
	}
	if cfg.Store.HistoryLimit < 0 {
		return errors.Wrapf(errors.ErrValueOutOfRange,
			"store.history_limit cannot be negative, got %d", cfg.Store.HistoryLimit)
	}
	return nil
}

func isQueryKind(s string) bool {
	for _, k := range constants.QueryKinds() {
		if k.String() == s {
			return true
		}
	}
	return false
}
