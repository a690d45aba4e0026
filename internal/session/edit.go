package session

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"sova-cli/internal/model"
	"sova-cli/internal/protocol"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

// EditKind selects which frame field an inline edit targets.
type EditKind int

const (
	EditDuration EditKind = iota + 1
	EditRepetitions
	EditName
)

func (k EditKind) String() string {
	switch k {
	case EditDuration:
		return "duration"
	case EditRepetitions:
		return "repetitions"
	case EditName:
		return "name"
	default:
		return fmt.Sprintf("EditKind(%d)", int(k))
	}
}

// Edit describes the open text edit.
type Edit struct {
	Kind  EditKind
	Line  int
	Frame int
	Value string
}

type editSession struct {
	id ulid.ULID
	Edit
}

// StartEdit opens a text edit on (line, frame), seeded with the field's current value.
// Any previous text edit is dropped without committing.
func (t *Timeline) StartEdit(kind EditKind, line, frame int) (Edit, error) {
	f, ok := t.scene.Frame(line, frame)
	if !ok {
		return Edit{}, ErrNoFrame
	}
	var initial string
	switch kind {
	case EditDuration:
		initial = formatBeats(f.Beats())
	case EditRepetitions:
		initial = strconv.Itoa(f.Reps())
	case EditName:
		if f.Name != nil {
			initial = *f.Name
		}
	default:
		return Edit{}, fmt.Errorf("start edit: unknown kind %v", kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s := &editSession{id: ulid.Make(), Edit: Edit{Kind: kind, Line: line, Frame: frame, Value: initial}}
	if t.edit != nil {
		glog.V(2).Infof("session %s: replaced by %s", t.edit.id, s.id)
	}
	t.edit = s
	glog.V(2).Infof("session %s: edit %s at %d:%d", s.id, kind, line, frame)
	return s.Edit, nil
}

// UpdateValue replaces the typed text of the open edit. It is a no-op when idle.
func (t *Timeline) UpdateValue(v string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.edit != nil {
		t.edit.Value = v
	}
}

// Editing returns the open text edit, if any.
func (t *Timeline) Editing() (Edit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.edit == nil {
		return Edit{}, false
	}
	return t.edit.Edit, true
}

// EditValueFor returns the in-progress text when (kind, line, frame) is being edited.
func (t *Timeline) EditValueFor(kind EditKind, line, frame int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.edit == nil || t.edit.Kind != kind || t.edit.Line != line || t.edit.Frame != frame {
		return "", false
	}
	return t.edit.Value, true
}

// CancelEdit closes the text edit with no side effects.
func (t *Timeline) CancelEdit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edit = nil
}

// CommitEdit parses and validates the typed value and, when it is valid, sends one
// immediate SetFrames replacing the frame with the edited field. modifier halves the snap
// granularity for duration edits.
//
// Invalid input closes the session without sending. When the Sender fails the session is
// left open with the typed value so the user can retry.
func (t *Timeline) CommitEdit(modifier bool) CommitResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.edit
	if s == nil {
		return CommitResult{Outcome: NoSession}
	}
	t.edit = nil

	f, ok := t.scene.Frame(s.Line, s.Frame)
	if !ok {
		glog.V(1).Infof("session %s: frame %d:%d gone, discarding", s.id, s.Line, s.Frame)
		return CommitResult{Outcome: Discarded, Err: ErrNoFrame}
	}
	updated, ok := t.applyEdit(f, s.Edit, modifier)
	if !ok {
		return CommitResult{Outcome: Discarded}
	}

	msg := protocol.SetFrames{
		Frames: []protocol.FrameUpdate{{Line: s.Line, Frame: s.Frame, Value: updated}},
		Timing: protocol.Immediate(),
	}
	if err := t.send(s.id, msg); err != nil {
		if t.edit == nil {
			t.edit = s
		}
		return CommitResult{Outcome: Failed, Message: msg, Err: err}
	}
	return CommitResult{Outcome: Committed, Message: msg}
}

// applyEdit returns f with the edited field replaced, or false when the input is invalid.
func (t *Timeline) applyEdit(f model.Frame, e Edit, modifier bool) (model.Frame, bool) {
	out := f.Clone()
	v := strings.TrimSpace(e.Value)
	switch e.Kind {
	case EditDuration:
		d, ok := parseBeats(v)
		if !ok {
			return f, false
		}
		out.Duration = t.snap.Quantize(d, modifier)
	case EditRepetitions:
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > math.MaxInt32 {
			return f, false
		}
		out.Repetitions = n
	case EditName:
		if v == "" {
			out.Name = nil
		} else {
			out.Name = &v
		}
	default:
		return f, false
	}
	return out, true
}

// parseBeats accepts a finite, positive decimal number.
func parseBeats(s string) (float64, bool) {
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, false
	}
	return d, true
}

func formatBeats(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
