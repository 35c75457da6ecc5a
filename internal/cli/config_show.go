package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/scribe/internal/config"
	"github.com/mrz1836/scribe/internal/tui"
)

// ConfigShowFlags holds flags specific to the config show command.
type ConfigShowFlags struct {
	// Project is the directory whose .scribe.yaml is layered in.
	Project string
	// Tools adds tool detection to the output.
	Tools bool
}

// configView is the JSON shape of "config show".
type configView struct {
	Sources []string                    `json:"sources"`
	Config  map[string]any              `json:"config"`
	Tools   *config.ToolDetectionResult `json:"tools,omitempty"`
}

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(root *cobra.Command, global *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect scribe configuration",
	}
	cmd.AddCommand(newConfigShowCmd(global, &ConfigShowFlags{}))
	root.AddCommand(cmd)
}

// newConfigShowCmd creates the 'config show' subcommand.
func newConfigShowCmd(global *GlobalFlags, flags *ConfigShowFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective configuration after layering defaults, the global
config, the project config, an explicit --config file and SCRIBE_* variables.

Publish credentials are read from the environment at run time and are never
part of the configuration; only the variable names are shown.

Examples:
  scribe config show
  scribe config show --project ~/src/engine --tools
  scribe config show --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(commandContext(cmd), cmd.OutOrStdout(), global, flags, config.NewToolDetector())
		},
	}

	cmd.Flags().StringVarP(&flags.Project, "project", "p", ".", "project root directory")
	cmd.Flags().BoolVar(&flags.Tools, "tools", false, "check that configured programs are installed")

	return cmd
}

// runConfigShow executes the config show command.
func runConfigShow(ctx context.Context, w io.Writer, global *GlobalFlags, flags *ConfigShowFlags, detector *config.ToolDetector) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	opts, err := loadOptions(global, flags.Project)
	if err != nil {
		return err
	}
	cfg, err := config.Load(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	view := configView{Sources: config.SourceNames(opts)}
	if view.Config, err = configMap(cfg); err != nil {
		return err
	}
	if flags.Tools {
		if view.Tools, err = detector.Detect(ctx, cfg, opts.ProjectDir); err != nil {
			return err
		}
	}

	out := tui.NewOutput(w, global.Output)
	if global.Output == OutputJSON {
		return out.JSON(view)
	}
	return writeConfigText(w, out, cfg, view)
}

// configMap converts cfg to its snake_case document form.
func configMap(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return m, nil
}

func writeConfigText(w io.Writer, out tui.Output, cfg *config.Config, view configView) error {
	styles := tui.NewOutputStyles()

	_, _ = fmt.Fprintln(w, styles.Title.Render("Effective scribe configuration"))
	_, _ = fmt.Fprintln(w, styles.Dim.Render("Sources: "+strings.Join(view.Sources, ", ")))
	_, _ = fmt.Fprintln(w)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, _ = w.Write(data)

	if view.Tools == nil {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	rows := make([][]string, 0, len(view.Tools.Tools))
	for _, t := range view.Tools.Tools {
		required := ""
		if t.Required {
			required = "yes"
		}
		rows = append(rows, []string{t.Role, t.Program, t.Status.String(), t.Path, required})
	}
	out.Table([]string{"Role", "Program", "Status", "Path", "Required"}, rows)
	if view.Tools.HasMissingRequired {
		out.Warning("Required programs are missing; runs will fail until they are installed")
	}
	return nil
}
