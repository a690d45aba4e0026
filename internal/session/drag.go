package session

import (
	"sova-cli/internal/model"
	"sova-cli/internal/protocol"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

// Drag describes the open reorder gesture. Value is a private copy of the frame taken when
// the drag started.
type Drag struct {
	SourceLine  int
	SourceFrame int
	Value       model.Frame
	TargetLine  int
	TargetFrame int
}

type dragSession struct {
	id ulid.ULID
	Drag
}

// StartDrag begins moving (line, frame). It is refused while a resize owns the pointer. A
// drag already in progress is replaced.
func (t *Timeline) StartDrag(line, frame int) error {
	f, ok := t.scene.Frame(line, frame)
	if !ok {
		return ErrNoFrame
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.captured {
		return ErrPointerCaptured
	}
	s := &dragSession{id: ulid.Make(), Drag: Drag{
		SourceLine:  line,
		SourceFrame: frame,
		Value:       f.Clone(),
		TargetLine:  line,
		TargetFrame: frame,
	}}
	t.drag = s
	glog.V(2).Infof("session %s: drag from %d:%d", s.id, line, frame)
	return nil
}

// DragOver moves the drop target. frame is an insertion index and is clamped to the
// positions available on line once the dragged frame has been taken out.
func (t *Timeline) DragOver(line, frame int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.drag
	if s == nil {
		return false
	}
	sc := t.scene.Current()
	if line < 0 || line >= sc.LineCount() {
		return false
	}
	s.TargetLine, s.TargetFrame = line, clampTarget(sc, s.Drag, line, frame)
	return true
}

// clampTarget limits an insertion index on line to the positions left once the dragged
// frame has been taken out.
func clampTarget(sc *model.Scene, d Drag, line, frame int) int {
	limit := sc.FrameCount(line)
	if line == d.SourceLine {
		limit--
	}
	if frame > limit {
		frame = limit
	}
	if frame < 0 {
		frame = 0
	}
	return frame
}

// DropIndicator returns the target index on line while a drag is hovering over it.
func (t *Timeline) DropIndicator(line int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drag == nil || t.drag.TargetLine != line {
		return 0, false
	}
	return t.drag.TargetFrame, true
}

// Dragging returns the open drag, if any.
func (t *Timeline) Dragging() (Drag, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drag == nil {
		return Drag{}, false
	}
	return t.drag.Drag, true
}

// Drop ends the drag with a single SetLines carrying the source line without the frame and
// the target line with the snapshot inserted, so the server removes and inserts in one
// step. Dropping onto the source position sends nothing.
func (t *Timeline) Drop(timing protocol.ActionTiming) CommitResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.drag
	t.drag = nil
	if s == nil {
		return CommitResult{Outcome: NoSession}
	}
	sc := t.scene.Current()
	at := clampTarget(sc, s.Drag, s.TargetLine, s.TargetFrame)
	if s.TargetLine == s.SourceLine && at == s.SourceFrame {
		return CommitResult{Outcome: Discarded}
	}
	src, ok := sc.Line(s.SourceLine)
	if !ok || s.SourceFrame >= len(src.Frames) {
		return CommitResult{Outcome: Discarded, Err: ErrNoFrame}
	}
	src = src.Clone()
	src.Frames = append(src.Frames[:s.SourceFrame], src.Frames[s.SourceFrame+1:]...)

	dst := src
	if s.TargetLine != s.SourceLine {
		l, ok := sc.Line(s.TargetLine)
		if !ok {
			return CommitResult{Outcome: Discarded, Err: ErrNoFrame}
		}
		dst = l.Clone()
	}
	dst.Frames = append(dst.Frames[:at], append([]model.Frame{s.Value.Clone()}, dst.Frames[at:]...)...)

	msg := protocol.SetLines{Timing: timing}
	if s.TargetLine == s.SourceLine {
		msg.Lines = []protocol.LineUpdate{{Line: s.TargetLine, Value: dst}}
	} else {
		msg.Lines = []protocol.LineUpdate{
			{Line: s.SourceLine, Value: src},
			{Line: s.TargetLine, Value: dst},
		}
	}
	if err := t.send(s.id, msg); err != nil {
		return CommitResult{Outcome: Failed, Message: msg, Err: err}
	}
	return CommitResult{Outcome: Committed, Message: msg}
}

// CancelDrag abandons the drag.
func (t *Timeline) CancelDrag() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drag = nil
}
