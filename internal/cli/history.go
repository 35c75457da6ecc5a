package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/scribe/internal/domain"
	"github.com/mrz1836/scribe/internal/errors"
	"github.com/mrz1836/scribe/internal/tui"
)

// HistoryFlags holds flags specific to the history command.
type HistoryFlags struct {
	Out   string
	Limit int
}

// AddHistoryCommand adds the history command to the root command.
func AddHistoryCommand(root *cobra.Command, global *GlobalFlags) {
	root.AddCommand(newHistoryCmd(global, &HistoryFlags{}))
}

func newHistoryCmd(global *GlobalFlags, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs of an output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			if flags.Limit < 0 {
				return errors.NewExitCode2Error(fmt.Errorf("%w: --limit %d", errors.ErrValueOutOfRange, flags.Limit))
			}

			limit := flags.Limit
			if limit == 0 {
				cfg, err := loadConfig(ctx, global, "")
				if err != nil {
					return err
				}
				limit = cfg.Store.HistoryLimit
			}

			ledger, err := openLedger(ctx, flags.Out)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			runs, err := ledger.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			out := newOutput(cmd, global)
			if global.Output == OutputJSON {
				return out.JSON(runs)
			}
			if len(runs) == 0 {
				out.Info("No runs recorded in " + flags.Out)
				return nil
			}
			out.Table([]string{"ID", "Status", "Started", "Duration", "Queries"}, historyRows(runs))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Out, "out", "", "output directory holding the run ledger")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "n", 0, "maximum number of runs (default: store.history_limit)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func historyRows(runs []*domain.PipelineRun) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = tui.FormatDurationMs(run.CompletedAt.Sub(run.StartedAt).Milliseconds())
		}
		queries := "-"
		if n := len(run.Queries); n > 0 {
			queries = strconv.Itoa(n-len(run.FailedQueries())) + "/" + strconv.Itoa(n)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			tui.RunStatusIcon(run.Status) + " " + run.Status.String(),
			run.StartedAt.Local().Format(time.DateTime),
			duration,
			queries,
		})
	}
	return rows
}
