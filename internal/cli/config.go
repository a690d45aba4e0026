package cli

import (
	"sova-cli/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings in config.json",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings (file, then SOVA_* variables, then flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"server":        cfg.ServerAddr(),
				"username":      cfg.Username,
				"snap":          cfg.Snap(),
				"pixelsPerBeat": cfg.CellsPerBeat(),
				"vertical":      cfg.Vertical,
				"drafts":        cfg.DraftsEnabled(),
				"pollMillis":    cfg.PollInterval().Milliseconds(),
				"colorProfile":  cfg.ColorProfile(),
				"glyphs":        glyphsOf(cfg),
			}, map[string]any{"path": st.ConfigPath(), "keys": store.ConfigKeys()})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(app.ConfigDir)
			if err != nil {
				return writeErr(cmd, err)
			}
			// Environment overrides must not leak into the file.
			cfg, err := st.LoadFileConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			if err := st.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app,
				map[string]any{"key": args[0], "value": args[1]},
				map[string]any{"path": st.ConfigPath()})
		},
	})

	return cmd
}

func glyphsOf(cfg *store.Config) string {
	if cfg.TUI == nil || cfg.TUI.Glyphs == "" {
		return "unicode"
	}
	return cfg.TUI.Glyphs
}
