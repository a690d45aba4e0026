package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"sova-cli/internal/protocol"

	"github.com/spf13/cobra"
)

// timingFlags are the --at-beat / --end-of-line pair shared by every scheduled command.
type timingFlags struct {
	atBeat    uint64
	endOfLine int
	dryRun    bool
}

func (f *timingFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.atBeat, "at-beat", 0, "Apply when the shared clock reaches this beat")
	cmd.Flags().IntVar(&f.endOfLine, "end-of-line", 0, "Apply when this line wraps around")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print the message instead of sending it")
	cmd.MarkFlagsMutuallyExclusive("at-beat", "end-of-line")
}

func (f *timingFlags) timing(cmd *cobra.Command) (protocol.ActionTiming, error) {
	switch {
	case cmd.Flags().Changed("at-beat"):
		return protocol.AtBeat(f.atBeat), nil
	case cmd.Flags().Changed("end-of-line"):
		if f.endOfLine < 0 {
			return protocol.ActionTiming{}, fmt.Errorf("--end-of-line: expected a line index >= 0, got %d", f.endOfLine)
		}
		return protocol.EndOfLine(f.endOfLine), nil
	default:
		return protocol.Immediate(), nil
	}
}

// sendTimed sends msg on a fresh connection (or only prints it with --dry-run) and reports
// what went out.
func sendTimed(cmd *cobra.Command, app *App, f *timingFlags, msg protocol.Timed) error {
	raw, err := protocol.Encode(msg)
	if err != nil {
		return writeErr(cmd, err)
	}
	data := map[string]any{
		"message": json.RawMessage(raw),
		"timing":  msg.ActionTiming().String(),
		"sent":    false,
	}
	if f.dryRun {
		return writeOut(cmd, app, data, nil)
	}
	err = withSession(cmd, app, func(_ context.Context, s *session) error {
		data["server"] = s.server
		return s.conn.Send(msg)
	})
	if err != nil {
		return writeErr(cmd, err)
	}
	data["sent"] = true
	return writeOut(cmd, app, data, nil)
}

func newTransportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transport",
		Short: "Start or stop the shared transport",
	}

	var start timingFlags
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start playback (now, at a beat, or at the end of a line)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := start.timing(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			return sendTimed(cmd, app, &start, protocol.TransportStart{Timing: t})
		},
	}
	start.register(startCmd)

	var stop timingFlags
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop playback (now, at a beat, or at the end of a line)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := stop.timing(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			return sendTimed(cmd, app, &stop, protocol.TransportStop{Timing: t})
		},
	}
	stop.register(stopCmd)

	cmd.AddCommand(startCmd, stopCmd)
	return cmd
}

func newTempoCmd(app *App) *cobra.Command {
	var f timingFlags
	cmd := &cobra.Command{
		Use:   "tempo <bpm>",
		Short: "Change the shared tempo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bpm, err := strconv.ParseFloat(args[0], 64)
			if err != nil || !(bpm > 0) || math.IsInf(bpm, 0) {
				return writeErr(cmd, fmt.Errorf("tempo: expected a positive number of beats per minute, got %q", args[0]))
			}
			t, err := f.timing(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			return sendTimed(cmd, app, &f, protocol.SetTempo{BPM: bpm, Timing: t})
		},
	}
	f.register(cmd)
	return cmd
}
