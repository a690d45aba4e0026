package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sova-cli/internal/format"
	"sova-cli/internal/store"
	"sova-cli/internal/tui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type App struct {
	ConfigDir  string
	Server     string
	PrettyJSON bool
	Format     string
	Timeout    time.Duration
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "sova",
		Short:        "Sova scene editor (terminal client)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open the editor on the configured server
  sova

  # Connect somewhere else for this session
  sova --server 10.0.0.5:8080

  # Start playback at the next bar of line 0
  sova transport start --end-of-line 0

  # Dump the scene as JSON
  sova scene --pretty
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive editor.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigDir, "config-dir", envOr("SOVA_CONFIG_DIR", ""), "Directory holding config.json, tui_state.json and drafts.sqlite (default ~/.sova)")
	cmd.PersistentFlags().StringVar(&app.Server, "server", "", "Server address host:port or ws:// URL (overrides config and SOVA_SERVER)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SOVA_FORMAT", "json"), "Output format (json|edn)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 5*time.Second, "How long one-shot commands wait for the server")
	cmd.PersistentFlags().AddFlagSet(logFlags())

	cmd.AddCommand(newTransportCmd(app))
	cmd.AddCommand(newTempoCmd(app))
	cmd.AddCommand(newSceneCmd(app))
	cmd.AddCommand(newClockCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDraftsCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// logFlags bridges glog's flags (registered on the standard flag set) into cobra. Only the
// common ones are listed in --help.
func logFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("glog", pflag.ContinueOnError)
	fs.AddGoFlagSet(flag.CommandLine)
	visible := map[string]bool{"v": true, "logtostderr": true, "log_dir": true, "vmodule": true}
	fs.VisitAll(func(f *pflag.Flag) {
		f.Hidden = !visible[f.Name]
	})
	return fs
}

func runTUI(cmd *cobra.Command, app *App) error {
	st, cfg, err := loadConfig(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	return tui.Run(cmd.Context(), st, cfg)
}

// loadConfig opens the store and reads the effective config: file, then SOVA_* variables,
// then --server.
func loadConfig(app *App) (store.Store, *store.Config, error) {
	st, err := store.Open(app.ConfigDir)
	if err != nil {
		return store.Store{}, nil, err
	}
	cfg, err := st.LoadConfig()
	if err != nil {
		return st, nil, err
	}
	if s := strings.TrimSpace(app.Server); s != "" {
		cfg.Server = s
	}
	return st, cfg, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, data any, meta map[string]any) error {
	return format.Write(cmd.OutOrStdout(), format.Envelope{Data: data, Meta: meta}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
