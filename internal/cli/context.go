package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/scribe/internal/config"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/store"
	"github.com/mrz1836/scribe/internal/tui"
)

// commandContext returns the command context carrying the CLI logger.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := GetLogger()
	return logger.WithContext(ctx)
}

// newOutput creates the output for the command's stdout.
func newOutput(cmd *cobra.Command, flags *GlobalFlags) tui.Output {
	return tui.NewOutput(cmd.OutOrStdout(), flags.Output)
}

// loadConfig loads the layered configuration for projectDir. An empty
// projectDir uses the working directory.
func loadConfig(ctx context.Context, flags *GlobalFlags, projectDir string) (*config.Config, error) {
	opts, err := loadOptions(flags, projectDir)
	if err != nil {
		return nil, err
	}
	return config.Load(ctx, opts)
}

func loadOptions(flags *GlobalFlags, projectDir string) (config.LoadOptions, error) {
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.LoadOptions{}, fmt.Errorf("failed to get current directory: %w", err)
		}
		projectDir = cwd
	}
	return config.LoadOptions{ProjectDir: projectDir, ConfigFile: flags.ConfigFile}, nil
}

// openLedger opens the run ledger of an output directory. The directory
// must already hold runs.
func openLedger(ctx context.Context, outDir string) (*store.Store, error) {
	if outDir == "" {
		return nil, errors.NewExitCode2Error(fmt.Errorf("%w: --out", errors.ErrEmptyValue))
	}
	path := filepath.Join(outDir, constants.StateDir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: no runs in %s", errors.ErrRunNotFound, outDir)
	}
	return store.Open(ctx, store.Config{Path: path})
}
