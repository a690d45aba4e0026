package cli

import (
	"context"
	"errors"

	"sova-cli/internal/model"
	"sova-cli/internal/protocol"

	"github.com/spf13/cobra"
)

var errNoScene = errors.New("server sent an empty scene")

func newSceneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "scene",
		Short: "Fetch the current scene and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sc *model.Scene
			err := withSession(cmd, app, func(ctx context.Context, s *session) error {
				if err := s.conn.Send(protocol.GetScene); err != nil {
					return err
				}
				m, err := s.await(ctx, "SceneValue", func(m protocol.ServerMessage) bool {
					_, ok := m.(protocol.SceneValue)
					return ok
				})
				if err != nil {
					return err
				}
				sc = m.(protocol.SceneValue).Scene
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if sc == nil {
				return writeErr(cmd, errNoScene)
			}
			return writeOut(cmd, app, sc, map[string]any{"lines": sc.LineCount(), "maxFrames": sc.MaxFrames()})
		},
	}
}

func newClockCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clock",
		Short: "Print the shared clock (tempo, beat, quantum)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c protocol.ClockState
			var playing bool
			err := withSession(cmd, app, func(ctx context.Context, s *session) error {
				playing = s.hello.IsPlaying
				if err := s.conn.Send(protocol.GetClock); err != nil {
					return err
				}
				m, err := s.await(ctx, "ClockState", func(m protocol.ServerMessage) bool {
					_, ok := m.(protocol.ClockState)
					return ok
				})
				if err != nil {
					return err
				}
				c = m.(protocol.ClockState)
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"tempo":   c.Tempo,
				"beat":    c.Beat,
				"micros":  c.Micros,
				"quantum": c.Quantum,
				"playing": playing,
			}, nil)
		},
	}
}
