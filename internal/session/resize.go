package session

import (
	"errors"

	"sova-cli/internal/protocol"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

var ErrPointerCaptured = errors.New("pointer is captured by another gesture")

// Pointer is one pointer sample in layout units.
type Pointer struct {
	X, Y float64
	// Modifier halves the snap granularity for this sample.
	Modifier bool
}

// Resize describes the open resize gesture.
type Resize struct {
	Line          int
	Frame         int
	StartPos      float64
	StartDuration float64
	Preview       float64
}

type resizeSession struct {
	id ulid.ULID
	Resize
}

func (l Layout) axis(p Pointer) float64 {
	if l.Vertical {
		return p.Y
	}
	return p.X
}

// StartResize opens a resize gesture on (line, frame) and captures the pointer until
// PointerRelease or CancelResize.
func (t *Timeline) StartResize(line, frame int, p Pointer) error {
	f, ok := t.scene.Frame(line, frame)
	if !ok {
		return ErrNoFrame
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.captured {
		return ErrPointerCaptured
	}
	d := f.Beats()
	s := &resizeSession{id: ulid.Make(), Resize: Resize{
		Line:          line,
		Frame:         frame,
		StartPos:      t.layout.axis(p),
		StartDuration: d,
		Preview:       d,
	}}
	t.resize = s
	t.captured = true
	glog.V(2).Infof("session %s: resize at %d:%d from %v beats", s.id, line, frame, d)
	return nil
}

// CapturesPointer reports whether pointer events belong to the resize gesture.
func (t *Timeline) CapturesPointer() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captured
}

// PointerMove updates the live preview. Pointer travel is spread over the frame's
// repetitions, so dragging a frame repeated N times changes its duration N times slower.
// It reports whether a preview was updated.
func (t *Timeline) PointerMove(p Pointer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.resize
	if s == nil {
		return false
	}
	f, ok := t.scene.Frame(s.Line, s.Frame)
	if !ok {
		return false
	}
	delta := t.layout.axis(p) - s.StartPos
	beats := delta / t.layout.PixelsPerBeat / float64(f.Reps())
	s.Preview = t.snap.Quantize(s.StartDuration+beats, p.Modifier)
	return true
}

// PreviewDuration returns the live preview for (line, frame) while it is being resized.
func (t *Timeline) PreviewDuration(line, frame int) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resize == nil || t.resize.Line != line || t.resize.Frame != frame {
		return 0, false
	}
	return t.resize.Preview, true
}

// Resizing returns the open resize gesture, if any.
func (t *Timeline) Resizing() (Resize, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.resize == nil {
		return Resize{}, false
	}
	return t.resize.Resize, true
}

// PointerRelease ends the gesture and releases the pointer. When the preview differs from
// the frame's current duration one immediate SetFrames is sent. The session closes even
// when sending fails.
func (t *Timeline) PointerRelease() CommitResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.resize
	t.cancelResizeLocked()
	if s == nil {
		return CommitResult{Outcome: NoSession}
	}
	f, ok := t.scene.Frame(s.Line, s.Frame)
	if !ok {
		return CommitResult{Outcome: Discarded, Err: ErrNoFrame}
	}
	if s.Preview == f.Beats() {
		return CommitResult{Outcome: Discarded}
	}
	updated := f.Clone()
	updated.Duration = s.Preview
	msg := protocol.SetFrames{
		Frames: []protocol.FrameUpdate{{Line: s.Line, Frame: s.Frame, Value: updated}},
		Timing: protocol.Immediate(),
	}
	if err := t.send(s.id, msg); err != nil {
		return CommitResult{Outcome: Failed, Message: msg, Err: err}
	}
	return CommitResult{Outcome: Committed, Message: msg}
}

// CancelResize abandons the gesture and releases the pointer.
func (t *Timeline) CancelResize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelResizeLocked()
}

func (t *Timeline) cancelResizeLocked() {
	t.resize = nil
	t.captured = false
}
