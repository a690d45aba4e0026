package model

import (
	"bytes"
	"encoding/json"
	"math"
)

// DefaultLang is the script language tag the server assigns to new frames.
const DefaultLang = "bali"

type Script struct {
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
}

// Frame is one rhythmic step of a line.
//
// Duration and Repetitions hold whatever the server sent; read them through Beats and Reps,
// which substitute 1 for anything unusable.
type Frame struct {
	Duration    float64 `json:"duration"`
	Enabled     bool    `json:"enabled"`
	Name        *string `json:"name"`
	Script      Script  `json:"script"`
	Repetitions int     `json:"repetitions"`
}

type Line struct {
	Frames       []Frame  `json:"frames"`
	SpeedFactor  float64  `json:"speed_factor"`
	Index        int      `json:"index"`
	StartFrame   *int     `json:"start_frame,omitempty"`
	EndFrame     *int     `json:"end_frame,omitempty"`
	CustomLength *float64 `json:"custom_length,omitempty"`
}

// Scene is the ordered set of lines; the slice index is the grid column.
type Scene struct {
	Lines []Line `json:"lines"`
}

func DefaultFrame() Frame {
	return Frame{
		Duration:    1,
		Enabled:     true,
		Script:      Script{Lang: DefaultLang},
		Repetitions: 1,
	}
}

// Beats returns the frame duration in beats, falling back to 1 when the stored value is
// not a finite positive number.
func (f Frame) Beats() float64 {
	d := f.Duration
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 1
	}
	return d
}

// Reps returns the repetition count, falling back to 1 when the stored value is below 1.
func (f Frame) Reps() int {
	if f.Repetitions < 1 {
		return 1
	}
	return f.Repetitions
}

// DisplayName returns the frame name or "" when unnamed.
func (f Frame) DisplayName() string {
	if f.Name == nil {
		return ""
	}
	return *f.Name
}

// Clone returns a copy that shares no memory with f.
func (f Frame) Clone() Frame {
	out := f
	if f.Name != nil {
		n := *f.Name
		out.Name = &n
	}
	return out
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	type frameAlias Frame
	var raw struct {
		frameAlias
		Duration    json.RawMessage `json:"duration"`
		Repetitions json.RawMessage `json:"repetitions"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = Frame(raw.frameAlias)
	f.Duration = 0
	if d, ok := looseNumber(raw.Duration); ok {
		f.Duration = d
	}
	f.Repetitions = 0
	if r, ok := looseNumber(raw.Repetitions); ok && r == math.Trunc(r) && r >= 1 && r <= math.MaxInt32 {
		f.Repetitions = int(r)
	}
	return nil
}

// looseNumber decodes a JSON number, reporting false for strings, null, bools or garbage.
func looseNumber(b json.RawMessage) (float64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, false
	}
	return v, true
}

func (l Line) Frame(i int) (Frame, bool) {
	if i < 0 || i >= len(l.Frames) {
		return Frame{}, false
	}
	return l.Frames[i], true
}

// Clone returns a copy whose frames and bounds share no memory with l.
func (l Line) Clone() Line {
	out := l
	out.Frames = make([]Frame, len(l.Frames))
	for i, f := range l.Frames {
		out.Frames[i] = f.Clone()
	}
	if l.StartFrame != nil {
		v := *l.StartFrame
		out.StartFrame = &v
	}
	if l.EndFrame != nil {
		v := *l.EndFrame
		out.EndFrame = &v
	}
	if l.CustomLength != nil {
		v := *l.CustomLength
		out.CustomLength = &v
	}
	return out
}

// Length is the line's loop length in beats: CustomLength when set, otherwise the sum of
// every frame's duration times its repetitions between StartFrame and EndFrame.
func (l Line) Length() float64 {
	if l.CustomLength != nil && *l.CustomLength > 0 {
		return *l.CustomLength
	}
	start, end := 0, len(l.Frames)-1
	if l.StartFrame != nil && *l.StartFrame > start {
		start = *l.StartFrame
	}
	if l.EndFrame != nil && *l.EndFrame < end {
		end = *l.EndFrame
	}
	total := 0.0
	for i := start; i <= end && i < len(l.Frames); i++ {
		f := l.Frames[i]
		total += f.Beats() * float64(f.Reps())
	}
	return total
}

func (s *Scene) LineCount() int {
	if s == nil {
		return 0
	}
	return len(s.Lines)
}

func (s *Scene) Line(i int) (Line, bool) {
	if s == nil || i < 0 || i >= len(s.Lines) {
		return Line{}, false
	}
	return s.Lines[i], true
}

func (s *Scene) Frame(line, frame int) (Frame, bool) {
	l, ok := s.Line(line)
	if !ok {
		return Frame{}, false
	}
	return l.Frame(frame)
}

// FrameCount returns the number of frames in line, or 0 if the line does not exist.
func (s *Scene) FrameCount(line int) int {
	l, ok := s.Line(line)
	if !ok {
		return 0
	}
	return len(l.Frames)
}

// MaxFrames is the frame count of the longest line (the grid's row count).
func (s *Scene) MaxFrames() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, l := range s.Lines {
		if len(l.Frames) > n {
			n = len(l.Frames)
		}
	}
	return n
}
