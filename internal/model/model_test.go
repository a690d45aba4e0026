package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFrameBeats_FallsBackToOne(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"positive", 2.5, 2.5},
		{"zero", 0, 1},
		{"negative", -3, 1},
		{"nan", math.NaN(), 1},
		{"inf", math.Inf(1), 1},
	}
	for _, tc := range cases {
		f := Frame{Duration: tc.in}
		if got := f.Beats(); got != tc.want {
			t.Fatalf("%s: Beats()=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFrameReps_FallsBackToOne(t *testing.T) {
	t.Parallel()

	for _, in := range []int{0, -1, -100} {
		if got := (Frame{Repetitions: in}).Reps(); got != 1 {
			t.Fatalf("Reps(%d)=%d, want 1", in, got)
		}
	}
	if got := (Frame{Repetitions: 4}).Reps(); got != 4 {
		t.Fatalf("Reps(4)=%d", got)
	}
}

func TestFrameUnmarshal_ToleratesGarbageNumbers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body      string
		wantBeats float64
		wantReps  int
	}{
		{`{"duration":"abc","repetitions":"x"}`, 1, 1},
		{`{"duration":null,"repetitions":null}`, 1, 1},
		{`{"duration":true,"repetitions":2.5}`, 1, 1},
		{`{"duration":-2,"repetitions":0}`, 1, 1},
		{`{}`, 1, 1},
		{`{"duration":0.75,"repetitions":3}`, 0.75, 3},
	}
	for _, tc := range cases {
		var f Frame
		if err := json.Unmarshal([]byte(tc.body), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.body, err)
		}
		if f.Beats() != tc.wantBeats || f.Reps() != tc.wantReps {
			t.Fatalf("%s: got beats=%v reps=%d", tc.body, f.Beats(), f.Reps())
		}
	}
}

func TestFrameUnmarshal_KeepsOtherFields(t *testing.T) {
	t.Parallel()

	body := `{"duration":2,"enabled":true,"name":"kick","script":{"content":"d: 1","lang":"bali"},"repetitions":2}`
	var f Frame
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !f.Enabled || f.DisplayName() != "kick" || f.Script.Content != "d: 1" || f.Script.Lang != "bali" {
		t.Fatalf("unexpected frame: %#v", f)
	}
}

func TestFrameClone_IsIndependent(t *testing.T) {
	t.Parallel()

	name := "snare"
	f := Frame{Duration: 1, Name: &name, Script: Script{Content: "x"}}
	c := f.Clone()
	*f.Name = "changed"
	f.Script.Content = "y"
	if c.DisplayName() != "snare" || c.Script.Content != "x" {
		t.Fatalf("clone shares memory with source: %#v", c)
	}
}

func TestScene_RaggedAccessors(t *testing.T) {
	t.Parallel()

	s := &Scene{Lines: []Line{
		{Frames: []Frame{DefaultFrame(), DefaultFrame(), DefaultFrame()}},
		{Frames: []Frame{DefaultFrame()}},
		{},
	}}
	if s.LineCount() != 3 || s.MaxFrames() != 3 {
		t.Fatalf("LineCount=%d MaxFrames=%d", s.LineCount(), s.MaxFrames())
	}
	if s.FrameCount(1) != 1 || s.FrameCount(7) != 0 {
		t.Fatalf("FrameCount mismatch")
	}
	if _, ok := s.Frame(1, 1); ok {
		t.Fatalf("expected (1,1) to be missing")
	}
	if _, ok := s.Frame(0, 2); !ok {
		t.Fatalf("expected (0,2) to exist")
	}

	var nilScene *Scene
	if nilScene.LineCount() != 0 || nilScene.MaxFrames() != 0 {
		t.Fatalf("nil scene should be empty")
	}
}

func TestLineLength(t *testing.T) {
	t.Parallel()

	l := Line{Frames: []Frame{
		{Duration: 1, Repetitions: 2},
		{Duration: 0.5, Repetitions: 1},
		{Duration: 4, Repetitions: 1},
	}}
	if got := l.Length(); got != 6.5 {
		t.Fatalf("Length()=%v, want 6.5", got)
	}
	end := 1
	l.EndFrame = &end
	if got := l.Length(); got != 2.5 {
		t.Fatalf("bounded Length()=%v, want 2.5", got)
	}
	custom := 16.0
	l.CustomLength = &custom
	if got := l.Length(); got != 16 {
		t.Fatalf("custom Length()=%v", got)
	}
}

func TestLineClone_SharesNothing(t *testing.T) {
	t.Parallel()

	name := "kick"
	end := 0
	l := Line{Frames: []Frame{{Duration: 1, Name: &name}}, EndFrame: &end}
	c := l.Clone()
	c.Frames[0].Duration = 3
	*c.Frames[0].Name = "snare"
	*c.EndFrame = 5
	c.Frames = append(c.Frames, Frame{})

	if l.Frames[0].Duration != 1 || *l.Frames[0].Name != "kick" || *l.EndFrame != 0 || len(l.Frames) != 1 {
		t.Fatalf("clone leaked into the original: %+v", l)
	}
}
