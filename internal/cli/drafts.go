package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newDraftsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect unsent script edits kept for the configured server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List buffered script edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			d, err := st.OpenDrafts(cmd.Context(), cfg.ServerAddr())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()
			rows, err := d.List(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]map[string]any, 0, len(rows))
			for _, r := range rows {
				out = append(out, map[string]any{
					"id":        r.ID,
					"line":      r.Line,
					"frame":     r.Frame,
					"lang":      r.Lang,
					"content":   r.Content,
					"updatedAt": r.UpdatedAt.Format(time.RFC3339),
				})
			}
			return writeOut(cmd, app, out, map[string]any{"server": cfg.ServerAddr(), "count": len(out)})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard every buffered script edit for the configured server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			d, err := st.OpenDrafts(cmd.Context(), cfg.ServerAddr())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer d.Close()
			n, err := d.Clear(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"server": cfg.ServerAddr(), "removed": n}, nil)
		},
	})

	return cmd
}
