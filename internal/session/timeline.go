// Package session implements the short-lived interaction sessions of the timeline editor:
// inline field edits (duration, repetitions, name), resize-by-drag and reorder-by-drag.
//
// Every session is Idle -> Active -> {Committed | Cancelled} -> Idle. Sessions snapshot
// their target at start and never mutate the scene; a commit emits exactly one
// timing-qualified command through the Sender. Cancelling never touches the scene or the
// transport.
package session

import (
	"errors"
	"sync"

	"sova-cli/internal/protocol"
	"sova-cli/internal/scene"
	"sova-cli/internal/snap"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

// Sender delivers a command to the server. Implementations must not block and must not
// call back into the Timeline.
type Sender interface {
	Send(msg protocol.ClientMessage) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(protocol.ClientMessage) error

func (f SenderFunc) Send(msg protocol.ClientMessage) error { return f(msg) }

// Layout is the geometry resize gestures are measured in.
type Layout struct {
	// PixelsPerBeat converts pointer travel into beats (terminal cells in the TUI).
	PixelsPerBeat float64
	// Vertical lays frames out top to bottom; resize then follows the Y axis.
	Vertical bool
}

type Deps struct {
	Scene  *scene.Store
	Sender Sender
	Snap   *snap.Setting
	Layout Layout
}

var ErrNoFrame = errors.New("frame does not exist")

type Outcome int

const (
	// NoSession means there was nothing to commit.
	NoSession Outcome = iota
	// Committed means a command was handed to the Sender.
	Committed
	// Discarded means the session closed without sending (invalid input or no change).
	Discarded
	// Failed means the Sender refused the command; Err says why.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Discarded:
		return "discarded"
	case Failed:
		return "failed"
	default:
		return "no session"
	}
}

type CommitResult struct {
	Outcome Outcome
	// Message is the command sent (or attempted) when Outcome is Committed or Failed.
	Message protocol.ClientMessage
	Err     error
}

// Timeline owns one slot per session kind. It is safe for concurrent use, though in the
// TUI every call comes from the event loop.
type Timeline struct {
	mu     sync.Mutex
	scene  *scene.Store
	sender Sender
	snap   *snap.Setting
	layout Layout

	edit     *editSession
	resize   *resizeSession
	drag     *dragSession
	captured bool
}

func New(d Deps) *Timeline {
	if d.Scene == nil {
		d.Scene = scene.NewStore()
	}
	if d.Snap == nil {
		d.Snap = snap.NewSetting(snap.DefaultGranularity)
	}
	if d.Sender == nil {
		d.Sender = SenderFunc(func(protocol.ClientMessage) error { return errors.New("not connected") })
	}
	if d.Layout.PixelsPerBeat <= 0 {
		d.Layout.PixelsPerBeat = 1
	}
	return &Timeline{scene: d.Scene, sender: d.Sender, snap: d.Snap, layout: d.Layout}
}

func (t *Timeline) SetLayout(l Layout) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l.PixelsPerBeat <= 0 {
		l.PixelsPerBeat = 1
	}
	t.layout = l
}

func (t *Timeline) Layout() Layout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layout
}

// SetSender swaps the command sink, e.g. after a reconnect.
func (t *Timeline) SetSender(s Sender) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sender = s
}

// Cancel closes every open session without side effects and releases pointer capture.
func (t *Timeline) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edit = nil
	t.cancelResizeLocked()
	t.drag = nil
}

// Active reports whether any session is open.
func (t *Timeline) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edit != nil || t.resize != nil || t.drag != nil
}

// send hands msg to the Sender and logs failures. Caller holds t.mu.
func (t *Timeline) send(id ulid.ULID, msg protocol.ClientMessage) error {
	if err := t.sender.Send(msg); err != nil {
		glog.Warningf("session %s: send %s failed: %v", id, msg.Variant(), err)
		return err
	}
	glog.V(2).Infof("session %s: sent %s", id, msg.Variant())
	return nil
}
