package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrz1836/scribe/internal/pipeline"
	"github.com/mrz1836/scribe/internal/tui"
)

// SnapshotFlags holds flags specific to the snapshot command.
type SnapshotFlags struct {
	Project string
	Out     string
}

// AddSnapshotCommand adds the snapshot command to the root command.
func AddSnapshotCommand(root *cobra.Command, global *GlobalFlags) {
	root.AddCommand(newSnapshotCmd(global, &SnapshotFlags{}))
}

func newSnapshotCmd(global *GlobalFlags, flags *SnapshotFlags, opts ...pipeline.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the build environment only",
		Long: `Capture the environment variables and compiler search paths into
<out>/environment.json without building anything. The file is the same one a
full run hands to the indexing engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			cfg, err := loadConfig(ctx, global, flags.Project)
			if err != nil {
				return err
			}

			snap, path, err := pipeline.New(cfg, opts...).Snapshot(ctx, flags.Out)
			if err != nil {
				return withCause(ctx, err)
			}

			out := newOutput(cmd, global)
			if global.Output == OutputJSON {
				return out.JSON(snap)
			}
			out.Table([]string{"Field", "Value"}, [][]string{
				{"Compiler", snap.Compiler},
				{"Variables", tui.FormatCount(len(snap.Variables))},
				{"Resource dir", snap.SearchPaths.ResourceDir},
				{"Include paths", tui.FormatCount(len(snap.SearchPaths.IncludePaths))},
			})
			out.Success(fmt.Sprintf("Snapshot written to %s", path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Project, "project", "p", ".", "project root directory (for .scribe.yaml)")
	cmd.Flags().StringVar(&flags.Out, "out", "", "output directory")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
