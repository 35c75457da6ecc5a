package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/scribe/internal/tui"
)

// ShowFlags holds flags specific to the show command.
type ShowFlags struct {
	Out string
}

// AddShowCommand adds the show command to the root command.
func AddShowCommand(root *cobra.Command, global *GlobalFlags) {
	root.AddCommand(newShowCmd(global, &ShowFlags{}))
}

func newShowCmd(global *GlobalFlags, flags *ShowFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of a past run",
		Long: `Show the full report of a recorded run. A unique prefix of the run id
is accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			ledger, err := openLedger(ctx, flags.Out)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			run, err := ledger.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			out := newOutput(cmd, global)
			if global.Output == OutputJSON {
				return out.JSON(run)
			}
			tui.PrintRun(out, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Out, "out", "", "output directory holding the run ledger")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
