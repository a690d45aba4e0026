package tui

import (
	"errors"
	"strings"
	"testing"

	"sova-cli/internal/localedits"
	"sova-cli/internal/model"
	"sova-cli/internal/protocol"
	"sova-cli/internal/replica"
	"sova-cli/internal/scene"
	"sova-cli/internal/selection"
	"sova-cli/internal/session"
	"sova-cli/internal/snap"
	"sova-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

type recorder struct {
	sent []protocol.ClientMessage
	err  error
}

func (r *recorder) Send(m protocol.ClientMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func (r *recorder) last(t *testing.T) protocol.ClientMessage {
	t.Helper()
	if len(r.sent) == 0 {
		t.Fatalf("nothing was sent")
	}
	return r.sent[len(r.sent)-1]
}

func (r *recorder) ofType(variant string) []protocol.ClientMessage {
	var out []protocol.ClientMessage
	for _, m := range r.sent {
		if m.Variant() == variant {
			out = append(out, m)
		}
	}
	return out
}

func testFrame(d float64, reps int, content string) model.Frame {
	f := model.DefaultFrame()
	f.Duration = d
	f.Repetitions = reps
	f.Script.Content = content
	return f
}

// testScene: line 0 = [1x1, 2x1 "lead", 0.5x2], line 1 = [1x1].
func testScene() *model.Scene {
	lead := "lead"
	f1 := testFrame(2, 1, "")
	f1.Name = &lead
	return &model.Scene{Lines: []model.Line{
		{Frames: []model.Frame{testFrame(1, 1, "a"), f1, testFrame(0.5, 2, "")}},
		{Frames: []model.Frame{testFrame(1, 1, "")}},
	}}
}

// newTestModel returns an editor on testScene at 4 cells per beat, horizontal, with an
// empty send log.
func newTestModel(t *testing.T, dir string) (appModel, *recorder) {
	t.Helper()
	rec := &recorder{}
	sc := scene.NewStore()
	sn := snap.NewSetting(0.25)
	tl := session.New(session.Deps{
		Scene:  sc,
		Sender: rec,
		Snap:   sn,
		Layout: session.Layout{PixelsPerBeat: 4},
	})
	rep := replica.New(sc, localedits.New(), tl)
	m := newAppModel(Options{
		Server:  "test",
		Replica: rep,
		Sender:  rec,
		Snap:    sn,
		Store:   store.Store{Dir: dir},
	})
	m = feed(t, m, serverMsg{msg: protocol.Hello{Username: "me", Scene: testScene()}})
	rec.sent = nil
	return m, rec
}

func feed(t *testing.T, m appModel, msgs ...tea.Msg) appModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		nm, ok := next.(appModel)
		if !ok {
			t.Fatalf("Update returned %T", next)
		}
		m = nm
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyEnter    = tea.KeyMsg{Type: tea.KeyEnter}
	keyAltEnter = tea.KeyMsg{Type: tea.KeyEnter, Alt: true}
	keyEsc      = tea.KeyMsg{Type: tea.KeyEsc}
	keyRight    = tea.KeyMsg{Type: tea.KeyRight}
	keyDown     = tea.KeyMsg{Type: tea.KeyDown}
	keyCtrlS    = tea.KeyMsg{Type: tea.KeyCtrlS}
	keySpace    = tea.KeyMsg{Type: tea.KeySpace}
)

func onlyFrameUpdate(t *testing.T, msg protocol.ClientMessage) protocol.FrameUpdate {
	t.Helper()
	sf, ok := msg.(protocol.SetFrames)
	if !ok {
		t.Fatalf("expected SetFrames, got %T", msg)
	}
	if len(sf.Frames) != 1 {
		t.Fatalf("expected one frame update, got %d", len(sf.Frames))
	}
	if sf.Timing.Kind() != protocol.TimingImmediate {
		t.Fatalf("expected immediate timing, got %s", sf.Timing)
	}
	return sf.Frames[0]
}

func TestArrows_MoveAlongTheTimeAxisAndPublish(t *testing.T) {
	m, rec := newTestModel(t, "")

	// Horizontal layout: right walks the frames of a line.
	m = feed(t, m, keyRight)
	if got := m.sel.Cursor(); got != (selection.Cell{Row: 1, Col: 0}) {
		t.Fatalf("cursor after right = %+v", got)
	}
	up, ok := rec.last(t).(protocol.UpdateGridSelection)
	if !ok {
		t.Fatalf("expected UpdateGridSelection, got %T", rec.last(t))
	}
	if up.Selection.Start != [2]int{1, 0} || up.Selection.End != [2]int{1, 0} {
		t.Fatalf("unexpected wire selection %+v", up.Selection)
	}

	// Down moves to the next line, whose single frame pulls the row back to 0.
	m = feed(t, m, keyDown)
	if got := m.sel.Cursor(); got != (selection.Cell{Row: 0, Col: 1}) {
		t.Fatalf("cursor after down = %+v", got)
	}

	// Bumping into the edge changes nothing and sends nothing.
	n := len(rec.sent)
	m = feed(t, m, keyDown)
	if len(rec.sent) != n {
		t.Fatalf("expected no selection update at the edge")
	}
}

func TestArrows_VerticalLayoutKeepsAxes(t *testing.T) {
	m, _ := newTestModel(t, "")
	m = feed(t, m, runes("v"), keyDown)
	if got := m.sel.Cursor(); got != (selection.Cell{Row: 1, Col: 0}) {
		t.Fatalf("cursor after down in vertical layout = %+v", got)
	}
}

func TestEditDuration_EnterSendsQuantizedFrame(t *testing.T) {
	m, rec := newTestModel(t, "")

	m = feed(t, m, runes("d"))
	if m.modal != modalEdit {
		t.Fatalf("expected edit modal, got %v", m.modal)
	}
	if got := m.input.Value(); got != "1" {
		t.Fatalf("expected field seeded with 1, got %q", got)
	}
	if _, ok := rec.last(t).(protocol.StartedEditingFrame); !ok {
		t.Fatalf("expected StartedEditingFrame, got %T", rec.last(t))
	}

	m.input.SetValue("1.1")
	m = feed(t, m, keyEnter)
	if m.modal != modalNone {
		t.Fatalf("expected modal closed after commit")
	}
	sets := rec.ofType("SetFrames")
	if len(sets) != 1 {
		t.Fatalf("expected exactly one SetFrames, got %d", len(sets))
	}
	u := onlyFrameUpdate(t, sets[0])
	if u.Line != 0 || u.Frame != 0 || u.Value.Duration != 1.0 {
		t.Fatalf("unexpected update %+v", u)
	}
	if _, ok := rec.last(t).(protocol.StoppedEditingFrame); !ok {
		t.Fatalf("expected StoppedEditingFrame last, got %T", rec.last(t))
	}
	// The scene only changes when the server says so.
	if f, _ := m.rep.Scene.Frame(0, 0); f.Duration != 1 {
		t.Fatalf("scene mutated locally: %v", f.Duration)
	}
}

func TestEditDuration_AltEnterUsesHalfStep(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, runes("d"))
	m.input.SetValue("1.13")
	m = feed(t, m, keyAltEnter)

	u := onlyFrameUpdate(t, rec.ofType("SetFrames")[0])
	if u.Value.Duration != 1.125 {
		t.Fatalf("expected 1.125, got %v", u.Value.Duration)
	}
}

func TestEdit_InvalidInputSendsNothing(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, runes("r"))
	m.input.SetValue("0")
	m = feed(t, m, keyEnter)

	if m.modal != modalNone {
		t.Fatalf("expected modal closed")
	}
	if n := len(rec.ofType("SetFrames")); n != 0 {
		t.Fatalf("expected no SetFrames, got %d", n)
	}
	if !m.flashErr || !strings.Contains(m.flash, "invalid repetitions") {
		t.Fatalf("expected invalid-input flash, got %q", m.flash)
	}
}

func TestEdit_SendFailureKeepsFieldOpen(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, runes("n"))
	m.input.SetValue("chorus")
	rec.err = errors.New("socket closed")
	m = feed(t, m, keyEnter)

	if m.modal != modalEdit {
		t.Fatalf("expected edit modal to stay open, got %v", m.modal)
	}
	e, ok := m.tl.Editing()
	if !ok || e.Value != "chorus" {
		t.Fatalf("expected session kept with typed value, got %+v ok=%v", e, ok)
	}
	if !m.flashErr {
		t.Fatalf("expected an error flash")
	}

	rec.err = nil
	m = feed(t, m, keyEnter)
	u := onlyFrameUpdate(t, rec.ofType("SetFrames")[0])
	if u.Value.DisplayName() != "chorus" {
		t.Fatalf("retry sent %+v", u.Value)
	}
}

func TestEdit_EscCancelsWithoutSetFrames(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, runes("d"))
	m.input.SetValue("3")
	m = feed(t, m, keyEsc)

	if m.modal != modalNone {
		t.Fatalf("expected modal closed")
	}
	if _, ok := m.tl.Editing(); ok {
		t.Fatalf("expected session closed")
	}
	if n := len(rec.ofType("SetFrames")); n != 0 {
		t.Fatalf("expected no SetFrames, got %d", n)
	}
	if n := len(rec.ofType("StoppedEditingFrame")); n != 1 {
		t.Fatalf("expected StoppedEditingFrame, got %d", n)
	}
}

func TestScript_TypingBuffersAndCtrlSSends(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, keyEnter)
	if m.modal != modalScript {
		t.Fatalf("expected script modal, got %v", m.modal)
	}
	if got := m.script.Value(); got != "a" {
		t.Fatalf("expected script seeded from scene, got %q", got)
	}

	m = feed(t, m, runes("b"))
	k := localedits.Key{Line: 0, Frame: 0}
	e, ok := m.rep.Edits.Get(k)
	if !ok || e.Content != "ab" || e.Lang != model.DefaultLang {
		t.Fatalf("expected buffered draft, got %+v ok=%v", e, ok)
	}

	m = feed(t, m, keyCtrlS)
	u := onlyFrameUpdate(t, rec.ofType("SetFrames")[0])
	if u.Value.Script.Content != "ab" || u.Value.Duration != 1 {
		t.Fatalf("unexpected script update %+v", u.Value)
	}
	if _, ok := m.rep.Edits.Get(k); ok {
		t.Fatalf("expected draft cleared after send")
	}
	if m.modal != modalNone {
		t.Fatalf("expected editor closed")
	}
}

func TestScript_EscKeepsDraftAndReopensIt(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, keyEnter, runes("z"), keyEsc)
	if m.modal != modalNone {
		t.Fatalf("expected editor closed")
	}
	if n := len(rec.ofType("SetFrames")); n != 0 {
		t.Fatalf("esc must not send, got %d SetFrames", n)
	}
	if _, ok := m.rep.Edits.Get(localedits.Key{Line: 0, Frame: 0}); !ok {
		t.Fatalf("expected draft kept")
	}

	m = feed(t, m, keyEnter)
	if got := m.script.Value(); got != "az" {
		t.Fatalf("expected the draft to win over the scene, got %q", got)
	}
}

func TestScript_SendFailureKeepsDraft(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, keyEnter, runes("q"))
	rec.err = errors.New("down")
	m = feed(t, m, keyCtrlS)

	if m.modal != modalScript {
		t.Fatalf("expected editor to stay open")
	}
	if _, ok := m.rep.Edits.Get(localedits.Key{Line: 0, Frame: 0}); !ok {
		t.Fatalf("expected draft kept after failed send")
	}
}

func TestScript_FollowsItsFrameAcrossStructuralChanges(t *testing.T) {
	m, _ := newTestModel(t, "")
	m = feed(t, m, keyRight, keyEnter)
	if m.scriptKey != (localedits.Key{Line: 0, Frame: 1}) {
		t.Fatalf("unexpected script key %+v", m.scriptKey)
	}

	m = feed(t, m, serverMsg{msg: protocol.FrameInserted{Line: 0, Frame: 0}})
	if m.modal != modalScript || m.scriptKey != (localedits.Key{Line: 0, Frame: 2}) {
		t.Fatalf("expected editor moved to frame 2, got %+v modal=%v", m.scriptKey, m.modal)
	}

	m = feed(t, m, serverMsg{msg: protocol.LineInserted{Line: 0}})
	if m.scriptKey != (localedits.Key{Line: 1, Frame: 2}) {
		t.Fatalf("expected editor moved to line 1, got %+v", m.scriptKey)
	}

	m = feed(t, m, serverMsg{msg: protocol.FrameRemoved{Line: 1, Frame: 2}})
	if m.modal != modalNone {
		t.Fatalf("expected editor closed when its frame is removed")
	}
}

func TestEdit_ClosedWhenTargetRemoved(t *testing.T) {
	m, _ := newTestModel(t, "")
	m = feed(t, m, runes("d"))
	m = feed(t, m, serverMsg{msg: protocol.FrameRemoved{Line: 0, Frame: 0}})
	if m.modal != modalNone {
		t.Fatalf("expected edit modal closed")
	}
	if _, ok := m.tl.Editing(); ok {
		t.Fatalf("expected session cancelled")
	}
}

func TestInsertAndRemoveFrame(t *testing.T) {
	m, rec := newTestModel(t, "")

	m = feed(t, m, runes("i"))
	ins, ok := rec.last(t).(protocol.InsertFrame)
	if !ok {
		t.Fatalf("expected InsertFrame, got %T", rec.last(t))
	}
	if ins.Line != 0 || ins.Frame != 1 || ins.Duration != 1 || ins.Timing.Kind() != protocol.TimingImmediate {
		t.Fatalf("unexpected insert %+v", ins)
	}

	m = feed(t, m, runes("x"))
	rm, ok := rec.last(t).(protocol.RemoveFrame)
	if !ok {
		t.Fatalf("expected RemoveFrame, got %T", rec.last(t))
	}
	if rm.Line != 0 || rm.Frame != 0 {
		t.Fatalf("unexpected remove %+v", rm)
	}
}

func TestSpace_TogglesTransport(t *testing.T) {
	m, rec := newTestModel(t, "")

	m = feed(t, m, keySpace)
	if _, ok := rec.last(t).(protocol.TransportStart); !ok {
		t.Fatalf("expected TransportStart, got %T", rec.last(t))
	}
	m = feed(t, m, serverMsg{msg: protocol.TransportStarted}, keySpace)
	if _, ok := rec.last(t).(protocol.TransportStop); !ok {
		t.Fatalf("expected TransportStop, got %T", rec.last(t))
	}
}

func TestSnapKeys_ChangeGranularityUsedByEdits(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m, runes("["))
	if got := m.snap.Get(); got != 0.125 {
		t.Fatalf("expected 0.125, got %v", got)
	}
	m = feed(t, m, runes("d"))
	m.input.SetValue("1.13")
	m = feed(t, m, keyEnter)
	if u := onlyFrameUpdate(t, rec.ofType("SetFrames")[0]); u.Value.Duration != 1.125 {
		t.Fatalf("expected 1.125 at the finer snap, got %v", u.Value.Duration)
	}
}

func mouse(action tea.MouseAction, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func TestMouse_ResizeSendsSnappedDuration(t *testing.T) {
	m, rec := newTestModel(t, "")

	// Frame 0:0 spans x=5..8 at 4 cells per beat; x=8 is its handle.
	m = feed(t, m, mouse(tea.MouseActionPress, 8, 2))
	if !m.tl.CapturesPointer() {
		t.Fatalf("expected pointer capture after pressing the handle")
	}
	m = feed(t, m, mouse(tea.MouseActionMotion, 12, 2))
	if p, ok := m.tl.PreviewDuration(0, 0); !ok || p != 2 {
		t.Fatalf("expected preview 2, got %v ok=%v", p, ok)
	}
	if len(rec.sent) != 0 {
		t.Fatalf("nothing may be sent before release, got %d", len(rec.sent))
	}

	m = feed(t, m, mouse(tea.MouseActionRelease, 12, 2))
	if m.tl.CapturesPointer() {
		t.Fatalf("expected capture released")
	}
	u := onlyFrameUpdate(t, rec.last(t))
	if u.Line != 0 || u.Frame != 0 || u.Value.Duration != 2 {
		t.Fatalf("unexpected resize update %+v", u)
	}
}

func TestMouse_ReleaseEndsResizeUnderModal(t *testing.T) {
	m, rec := newTestModel(t, "")

	m = feed(t, m,
		mouse(tea.MouseActionPress, 8, 2),
		mouse(tea.MouseActionMotion, 12, 2),
		runes("d"),
	)
	if m.modal != modalEdit {
		t.Fatalf("expected the duration editor to open, got modal %v", m.modal)
	}
	m = feed(t, m, mouse(tea.MouseActionRelease, 12, 2))
	if m.tl.CapturesPointer() {
		t.Fatalf("expected the release to end pointer capture while the modal is open")
	}
	if n := len(rec.ofType("SetFrames")); n != 1 {
		t.Fatalf("expected the resize to commit on release, got %d SetFrames", n)
	}
	if m.modal != modalEdit {
		t.Fatalf("release must not close the modal, got %v", m.modal)
	}

	m = feed(t, m, keyEsc, mouse(tea.MouseActionPress, 10, 2))
	if m.flashErr {
		t.Fatalf("next press failed: %s", m.flash)
	}
	if _, dragging := m.tl.Dragging(); !dragging {
		t.Fatalf("expected the next press to start a drag")
	}
}

func TestMouse_PressIgnoredUnderModal(t *testing.T) {
	m, rec := newTestModel(t, "")

	m = feed(t, m, runes("d"), mouse(tea.MouseActionPress, 10, 2), mouse(tea.MouseActionRelease, 10, 2))
	if _, dragging := m.tl.Dragging(); dragging {
		t.Fatalf("a press under a modal must not start a drag")
	}
	if n := len(rec.ofType("UpdateGridSelection")); n != 0 {
		t.Fatalf("a press under a modal must not move the selection, got %d", n)
	}
}

func TestMouse_DragMovesFrameAcrossLines(t *testing.T) {
	m, rec := newTestModel(t, "")

	m = feed(t, m,
		mouse(tea.MouseActionPress, 6, 2),
		mouse(tea.MouseActionMotion, 6, 3),
		mouse(tea.MouseActionRelease, 6, 3),
	)
	sl, ok := rec.last(t).(protocol.SetLines)
	if !ok {
		t.Fatalf("expected SetLines, got %T", rec.last(t))
	}
	if len(sl.Lines) != 2 || sl.Lines[0].Line != 0 || sl.Lines[1].Line != 1 {
		t.Fatalf("unexpected move %+v", sl.Lines)
	}
	if n := len(sl.Lines[0].Value.Frames); n != 2 {
		t.Fatalf("expected the source line to lose a frame, got %d frames", n)
	}
	moved := sl.Lines[1].Value.Frames
	if len(moved) != 2 || moved[0].Script.Content != "a" {
		t.Fatalf("expected the snapshot to travel with the move, got %+v", moved)
	}
	if n := len(rec.ofType("SetLines")); n != 1 {
		t.Fatalf("expected a single SetLines, got %d", n)
	}
}

func TestMouse_DropOnSourceSendsNothing(t *testing.T) {
	m, rec := newTestModel(t, "")
	m = feed(t, m,
		mouse(tea.MouseActionPress, 10, 2),
		mouse(tea.MouseActionRelease, 10, 2),
	)
	if n := len(rec.ofType("SetLines")); n != 0 {
		t.Fatalf("expected no SetLines, got %d", n)
	}
	// Pressing frame 0:1 still selected it.
	if got := m.sel.Cursor(); got != (selection.Cell{Row: 1, Col: 0}) {
		t.Fatalf("expected press to select, got %+v", got)
	}
}

func TestLayoutGrid_HitTesting(t *testing.T) {
	tl := session.New(session.Deps{Layout: session.Layout{PixelsPerBeat: 4}})
	g := layoutGrid(testScene(), tl)

	cases := []struct {
		name          string
		x, y          int
		line, frame   int
		handle, found bool
	}{
		{name: "body", x: 6, y: 2, line: 0, frame: 0, found: true},
		{name: "handle", x: 8, y: 2, line: 0, frame: 0, handle: true, found: true},
		{name: "second frame", x: 9, y: 2, line: 0, frame: 1, found: true},
		{name: "repeated frame spans reps", x: 20, y: 2, line: 0, frame: 2, handle: true, found: true},
		{name: "past the end", x: 40, y: 2, line: 0, frame: 3, found: true},
		{name: "second line", x: 5, y: 3, line: 1, frame: 0, found: true},
		{name: "gutter", x: 2, y: 2},
		{name: "no line", x: 6, y: 9},
	}
	for _, tc := range cases {
		line, frame, handle, ok := g.hit(tc.x, tc.y)
		if ok != tc.found {
			t.Fatalf("%s: found=%v, want %v", tc.name, ok, tc.found)
		}
		if !ok {
			continue
		}
		if line != tc.line || frame != tc.frame || handle != tc.handle {
			t.Fatalf("%s: got (%d,%d,handle=%v), want (%d,%d,handle=%v)", tc.name, line, frame, handle, tc.line, tc.frame, tc.handle)
		}
	}
}

func TestLayoutGrid_Vertical(t *testing.T) {
	tl := session.New(session.Deps{Layout: session.Layout{PixelsPerBeat: 2, Vertical: true}})
	g := layoutGrid(testScene(), tl)

	if line, frame, handle, ok := g.hit(6, 3); !ok || line != 0 || frame != 0 || !handle {
		t.Fatalf("expected handle of 0:0, got (%d,%d,%v,%v)", line, frame, handle, ok)
	}
	if line, frame, _, ok := g.hit(labelW+colW+1, 2); !ok || line != 1 || frame != 0 {
		t.Fatalf("expected 1:0, got (%d,%d,%v)", line, frame, ok)
	}
}

func TestView_ShowsFramesAndDrafts(t *testing.T) {
	m, _ := newTestModel(t, "")
	m = feed(t, m, tea.WindowSizeMsg{Width: 100, Height: 20})
	m.rep.Edits.Set(localedits.Key{Line: 1, Frame: 0}, "draft", model.DefaultLang)

	out := xansi.Strip(m.View())
	for _, want := range []string{"sova", "me@test", "L0", "L1", "lead", "1 draft(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
	if got := len(strings.Split(m.View(), "\n")); got != 20 {
		t.Fatalf("expected the view to fill 20 rows, got %d", got)
	}
}

func TestQuit_PersistsSelection(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestModel(t, dir)
	m = feed(t, m, keyRight, runes("g"))

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	st, err := store.Store{Dir: dir}.LoadTUIState()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if st.Server != "test" || st.SelectionEnd != [2]int{1, 0} || !st.ShowLogs {
		t.Fatalf("unexpected saved state %+v", st)
	}

	again, _ := newTestModel(t, dir)
	if got := again.sel.Cursor(); got != (selection.Cell{Row: 1, Col: 0}) {
		t.Fatalf("expected selection restored, got %+v", got)
	}
	if !again.showLogs {
		t.Fatalf("expected log panel restored")
	}
}
