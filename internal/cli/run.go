package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/pipeline"
	"github.com/mrz1836/scribe/internal/tui"
)

// RunFlags holds flags specific to the run command.
type RunFlags struct {
	Project     string
	Jobs        int
	Queries     []string
	Out         string
	StreamBuild bool
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, global *GlobalFlags) {
	root.AddCommand(newRunCmd(global, &RunFlags{}))
}

func newRunCmd(global *GlobalFlags, flags *RunFlags, opts ...pipeline.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, index and query a project",
		Long: `Run the full pipeline against a project.

Stages:
  1. snapshot  capture the environment and compiler search paths
  2. build     uninstrumented gate build, then an instrumented build
               (retried once with compiler shims when recording fails)
  3. index     filter the compilation record and build the code index
  4. queries   run the selected analysis queries against the index

The exit status is 0 when the build and index stages succeeded. Failed
queries are reported but do not change the exit status.

Examples:
  scribe run --project . --jobs 8 --out build/scribe
  scribe run --project ~/src/engine --queries find-parser,parser-calls --out /tmp/engine`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(commandContext(cmd), cmd, global, flags, opts...)
		},
	}

	cmd.Flags().StringVarP(&flags.Project, "project", "p", ".", "project root directory")
	cmd.Flags().IntVarP(&flags.Jobs, "jobs", "j", 0, "build parallelism hint (default: build.jobs, else CPU count)")
	cmd.Flags().StringSliceVar(&flags.Queries, "queries", nil, "comma-separated query names (default: all configured queries)")
	cmd.Flags().StringVar(&flags.Out, "out", "", "output directory for artifacts")
	cmd.Flags().BoolVar(&flags.StreamBuild, "stream-build", false, "stream build output to stderr")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runPipeline(ctx context.Context, cmd *cobra.Command, global *GlobalFlags, flags *RunFlags, opts ...pipeline.Option) error {
	if flags.Jobs < 0 {
		return errors.NewExitCode2Error(fmt.Errorf("%w: --jobs %d", errors.ErrValueOutOfRange, flags.Jobs))
	}

	cfg, err := loadConfig(ctx, global, flags.Project)
	if err != nil {
		return err
	}

	if flags.StreamBuild && global.Output != OutputJSON {
		opts = append(opts, pipeline.WithBuildOutput(cmd.ErrOrStderr()))
	}

	run, err := pipeline.New(cfg, opts...).Run(ctx, pipeline.Options{
		ProjectDir: flags.Project,
		OutDir:     flags.Out,
		Jobs:       flags.Jobs,
		Queries:    flags.Queries,
	})
	if run == nil {
		return withCause(ctx, err)
	}

	out := newOutput(cmd, global)
	if global.Output == OutputJSON {
		if jsonErr := out.JSON(run); jsonErr != nil {
			return jsonErr
		}
		return withCause(ctx, err)
	}

	tui.PrintRun(out, run)
	out.Info("")
	if err != nil {
		if run.BuildOutputsPreserved {
			out.Warning("Build outputs of the gate build were left in place")
		}
		return withCause(ctx, err)
	}

	failed := run.FailedQueries()
	for _, q := range failed {
		out.Warning(fmt.Sprintf("Query %s failed: %s", q.Name, q.Error))
	}
	out.Success(fmt.Sprintf("Run %s completed: %d of %d queries produced artifacts",
		shortID(run.ID), len(run.Queries)-len(failed), len(run.Queries)))
	return nil
}

// withCause attaches the cancellation cause, such as an interrupt, to errors
// of a canceled run.
func withCause(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil {
		return err
	}
	cause := context.Cause(ctx)
	if cause == nil || stderrors.Is(err, cause) {
		return err
	}
	return fmt.Errorf("%w: %w", cause, err)
}

// shortID abbreviates a run id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
