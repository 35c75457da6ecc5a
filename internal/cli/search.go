package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/scribe/internal/catalog"
	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/errors"
)

// SearchFlags holds flags specific to the search command.
type SearchFlags struct {
	Out   string
	Kind  string
	RunID string
	Limit int
}

// searchResult is the JSON shape of a search.
type searchResult struct {
	Total uint64        `json:"total"`
	Hits  []catalog.Hit `json:"hits"`
}

// AddSearchCommand adds the search command to the root command.
func AddSearchCommand(root *cobra.Command, global *GlobalFlags) {
	root.AddCommand(newSearchCmd(global, &SearchFlags{}))
}

func newSearchCmd(global *GlobalFlags, flags *SearchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <terms>...",
		Short: "Search the artifacts of past runs",
		Long: `Full-text search over the artifact catalog of an output directory.
The catalog is updated at the end of every run when run.catalog is enabled.

Examples:
  scribe search --out build/scribe narrowing
  scribe search --out build/scribe --kind query_output Parser`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			if flags.Out == "" {
				return errors.NewExitCode2Error(fmt.Errorf("%w: --out", errors.ErrEmptyValue))
			}
			if flags.Limit < 0 {
				return errors.NewExitCode2Error(fmt.Errorf("%w: --limit %d", errors.ErrValueOutOfRange, flags.Limit))
			}

			path := filepath.Join(flags.Out, constants.CatalogDir)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("%w: no artifact catalog in %s", errors.ErrRunNotFound, flags.Out)
			}
			cat, err := catalog.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = cat.Close() }()

			hits, total, err := cat.Search(ctx, catalog.Request{
				Terms: strings.Join(args, " "),
				Kind:  flags.Kind,
				RunID: flags.RunID,
				Limit: flags.Limit,
			})
			if err != nil {
				return err
			}

			out := newOutput(cmd, global)
			if global.Output == OutputJSON {
				return out.JSON(searchResult{Total: total, Hits: hits})
			}
			if len(hits) == 0 {
				out.Info("No matching artifacts")
				return nil
			}
			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{
					shortID(h.RunID),
					h.Name,
					h.Kind,
					strconv.FormatFloat(h.Score, 'f', 3, 64),
					strings.Join(h.Fragments, " … "),
				})
			}
			out.Table([]string{"Run", "Artifact", "Kind", "Score", "Match"}, rows)
			out.Info(fmt.Sprintf("%d of %d matches", len(hits), total))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Out, "out", "", "output directory holding the catalog")
	cmd.Flags().StringVar(&flags.Kind, "kind", "", "restrict to an artifact kind")
	cmd.Flags().StringVar(&flags.RunID, "run", "", "restrict to one run id")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "n", 10, "maximum number of hits")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
