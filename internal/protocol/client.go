// Package protocol defines the messages exchanged with the scene server.
//
// Messages use the server's externally tagged JSON encoding: a payload-free variant is a
// bare string ("GetScene"), every other variant is a single-key object whose value is the
// payload, usually a positional array ({"RemoveFrame":[0,2,"Immediate"]}).
package protocol

import (
	"encoding/json"
	"fmt"

	"sova-cli/internal/model"
	"sova-cli/internal/selection"
)

// ClientMessage is anything the client can send to the server.
type ClientMessage interface {
	Variant() string
	// payload returns the JSON value under the variant tag, or nil for bare variants.
	payload() any
}

// Encode returns the wire form of m.
func Encode(m ClientMessage) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	p := m.payload()
	if p == nil {
		return json.Marshal(m.Variant())
	}
	return json.Marshal(map[string]any{m.Variant(): p})
}

// Timed is implemented by messages that carry an ActionTiming.
type Timed interface {
	ClientMessage
	ActionTiming() ActionTiming
}

// FrameUpdate is one (line, frame, replacement) entry of SetFrames.
type FrameUpdate struct {
	Line  int
	Frame int
	Value model.Frame
}

func (u FrameUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{u.Line, u.Frame, u.Value})
}

func (u *FrameUpdate) UnmarshalJSON(b []byte) error {
	return decodeTuple(b, &u.Line, &u.Frame, &u.Value)
}

// SetFrames replaces whole frames.
type SetFrames struct {
	Frames []FrameUpdate
	Timing ActionTiming
}

func (SetFrames) Variant() string { return "SetFrames" }
func (m SetFrames) payload() any { return []any{m.Frames, m.Timing} }
func (m SetFrames) ActionTiming() ActionTiming { return m.Timing }

// LineUpdate is one (index, replacement) entry of SetLines.
type LineUpdate struct {
	Line  int
	Value model.Line
}

func (u LineUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{u.Line, u.Value})
}

func (u *LineUpdate) UnmarshalJSON(b []byte) error {
	return decodeTuple(b, &u.Line, &u.Value)
}

// SetLines replaces whole lines. Every entry is applied under the same timing, which makes
// it the one-step form of a move between lines.
type SetLines struct {
	Lines  []LineUpdate
	Timing ActionTiming
}

func (SetLines) Variant() string { return "SetLines" }
func (m SetLines) payload() any { return []any{m.Lines, m.Timing} }
func (m SetLines) ActionTiming() ActionTiming { return m.Timing }

// InsertFrame inserts an empty frame of Duration beats before position Frame.
type InsertFrame struct {
	Line     int
	Frame    int
	Duration float64
	Timing   ActionTiming
}

func (InsertFrame) Variant() string { return "InsertFrame" }
func (m InsertFrame) payload() any { return []any{m.Line, m.Frame, m.Duration, m.Timing} }
func (m InsertFrame) ActionTiming() ActionTiming { return m.Timing }

type RemoveFrame struct {
	Line   int
	Frame  int
	Timing ActionTiming
}

func (RemoveFrame) Variant() string { return "RemoveFrame" }
func (m RemoveFrame) payload() any { return []any{m.Line, m.Frame, m.Timing} }
func (m RemoveFrame) ActionTiming() ActionTiming { return m.Timing }

type SetTempo struct {
	BPM    float64
	Timing ActionTiming
}

func (SetTempo) Variant() string { return "SetTempo" }
func (m SetTempo) payload() any { return []any{m.BPM, m.Timing} }
func (m SetTempo) ActionTiming() ActionTiming { return m.Timing }

type TransportStart struct{ Timing ActionTiming }

func (TransportStart) Variant() string { return "TransportStart" }
func (m TransportStart) payload() any { return m.Timing }
func (m TransportStart) ActionTiming() ActionTiming { return m.Timing }

type TransportStop struct{ Timing ActionTiming }

func (TransportStop) Variant() string { return "TransportStop" }
func (m TransportStop) payload() any { return m.Timing }
func (m TransportStop) ActionTiming() ActionTiming { return m.Timing }

type SchedulerOp string

const (
	SchedulerPlay  SchedulerOp = "Play"
	SchedulerStop  SchedulerOp = "Stop"
	SchedulerPause SchedulerOp = "Pause"
	SchedulerReset SchedulerOp = "Reset"
	SchedulerSeek  SchedulerOp = "Seek"
)

// SchedulerControl drives the scheduler directly. Beat is only used by SchedulerSeek.
type SchedulerControl struct {
	Op   SchedulerOp
	Beat float64
}

func (SchedulerControl) Variant() string { return "SchedulerControl" }
func (m SchedulerControl) payload() any {
	if m.Op == SchedulerSeek {
		return map[string]float64{"Seek": m.Beat}
	}
	return string(m.Op)
}

// GridSelection is the wire form of a selection: [row, col] pairs.
type GridSelection struct {
	Start [2]int `json:"start"`
	End   [2]int `json:"end"`
}

func SelectionToWire(g selection.Grid) GridSelection {
	return GridSelection{
		Start: [2]int{g.Start.Row, g.Start.Col},
		End:   [2]int{g.End.Row, g.End.Col},
	}
}

func (s GridSelection) Grid() selection.Grid {
	return selection.Grid{
		Start: selection.Cell{Row: s.Start[0], Col: s.Start[1]},
		End:   selection.Cell{Row: s.End[0], Col: s.End[1]},
	}
}

type UpdateGridSelection struct{ Selection GridSelection }

func (UpdateGridSelection) Variant() string { return "UpdateGridSelection" }
func (m UpdateGridSelection) payload() any { return m.Selection }

type StartedEditingFrame struct{ Line, Frame int }

func (StartedEditingFrame) Variant() string { return "StartedEditingFrame" }
func (m StartedEditingFrame) payload() any { return []int{m.Line, m.Frame} }

type StoppedEditingFrame struct{ Line, Frame int }

func (StoppedEditingFrame) Variant() string { return "StoppedEditingFrame" }
func (m StoppedEditingFrame) payload() any { return []int{m.Line, m.Frame} }

type Chat struct{ Text string }

func (Chat) Variant() string { return "Chat" }
func (m Chat) payload() any { return m.Text }

type SetName struct{ Name string }

func (SetName) Variant() string { return "SetName" }
func (m SetName) payload() any { return m.Name }

// bare marks payload-free requests.
type bare string

func (b bare) Variant() string { return string(b) }
func (bare) payload() any { return nil }

var (
	GetScene    ClientMessage = bare("GetScene")
	GetClock    ClientMessage = bare("GetClock")
	GetSnapshot ClientMessage = bare("GetSnapshot")
	GetPeers    ClientMessage = bare("GetPeers")
)
