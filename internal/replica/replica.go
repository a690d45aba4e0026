// Package replica applies server messages to the client's local state: the scene replica,
// the local edit buffer, open interaction sessions, peer presence, the clock and the log.
package replica

import (
	"sync"

	"sova-cli/internal/localedits"
	"sova-cli/internal/protocol"
	"sova-cli/internal/scene"
	"sova-cli/internal/session"

	"github.com/golang/glog"
)

// Change says which parts of the replica a message touched.
type Change uint16

const (
	ChangedScene Change = 1 << iota
	// ChangedStructure marks an insert or removal notification; coordinates held outside
	// the replica (selection, cursors) should be clamped.
	ChangedStructure
	ChangedClock
	ChangedTransport
	ChangedPositions
	ChangedPeers
	ChangedLogs
	ChangedSession
)

func (c Change) Has(o Change) bool { return c&o != 0 }

type Clock struct {
	Tempo   float64
	Beat    float64
	Micros  uint64
	Quantum float64
	Playing bool
}

type Replica struct {
	Scene    *scene.Store
	Edits    *localedits.Buffer
	Timeline *session.Timeline
	Peers    *Peers
	Logs     *Logs

	// Refresh is called after a structural notification so the caller can fetch the
	// scene it now lags behind. Optional.
	Refresh func()

	mu        sync.Mutex
	clock     Clock
	positions [][3]int
	compilers []string
	refused   string
}

func New(sc *scene.Store, edits *localedits.Buffer, tl *session.Timeline) *Replica {
	if sc == nil {
		sc = scene.NewStore()
	}
	if edits == nil {
		edits = localedits.New()
	}
	if tl == nil {
		tl = session.New(session.Deps{Scene: sc})
	}
	return &Replica{
		Scene:    sc,
		Edits:    edits,
		Timeline: tl,
		Peers:    NewPeers(),
		Logs:     NewLogs(),
	}
}

func (r *Replica) Clock() Clock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clock
}

// Positions returns, per line, the playing frame, its repetition and the loop iteration.
func (r *Replica) Positions() [][3]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][3]int(nil), r.positions...)
}

// PlayingFrame reports which frame of line is playing, if known.
func (r *Replica) PlayingFrame(line int) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if line < 0 || line >= len(r.positions) {
		return 0, false
	}
	return r.positions[line][0], true
}

func (r *Replica) Compilers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.compilers...)
}

// Refused returns the reason the server gave for refusing the connection, if any.
func (r *Replica) Refused() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refused
}

// Apply folds one server message into the replica.
func (r *Replica) Apply(msg protocol.ServerMessage) Change {
	switch m := msg.(type) {
	case protocol.Hello:
		r.Peers.SetSelf(m.Username)
		r.Peers.SetNames(m.Peers)
		r.mu.Lock()
		r.clock.Playing = m.IsPlaying
		r.compilers = append([]string(nil), m.AvailableCompilers...)
		r.mu.Unlock()
		r.Scene.Replace(m.Scene)
		r.Timeline.Revalidate()
		glog.Infof("connected as %q, %d peers", m.Username, len(m.Peers))
		return ChangedScene | ChangedPeers | ChangedTransport | ChangedSession

	case protocol.SceneValue:
		r.Scene.Replace(m.Scene)
		r.Timeline.Revalidate()
		return ChangedScene | ChangedSession

	case protocol.Snapshot:
		r.Scene.Replace(m.Scene)
		r.Timeline.Revalidate()
		r.mu.Lock()
		r.clock.Tempo, r.clock.Beat, r.clock.Micros, r.clock.Quantum = m.Tempo, m.Beat, m.Micros, m.Quantum
		r.mu.Unlock()
		return ChangedScene | ChangedClock | ChangedSession

	case protocol.FrameRemoved:
		r.Edits.OnFrameRemoved(m.Line, m.Frame)
		r.Timeline.OnFrameRemoved(m.Line, m.Frame)
		r.Peers.onFrameRemoved(m.Line, m.Frame)
		r.refresh()
		return ChangedStructure | ChangedSession | ChangedPeers

	case protocol.LineRemoved:
		r.Edits.OnLineRemoved(m.Line)
		r.Timeline.OnLineRemoved(m.Line)
		r.Peers.onLineRemoved(m.Line)
		r.refresh()
		return ChangedStructure | ChangedSession | ChangedPeers

	case protocol.FrameInserted:
		r.Edits.OnFrameInserted(m.Line, m.Frame)
		r.Timeline.OnFrameInserted(m.Line, m.Frame)
		r.Peers.onFrameInserted(m.Line, m.Frame)
		r.refresh()
		return ChangedStructure | ChangedSession | ChangedPeers

	case protocol.LineInserted:
		r.Edits.OnLineInserted(m.Line)
		r.Timeline.OnLineInserted(m.Line)
		r.Peers.onLineInserted(m.Line)
		r.refresh()
		return ChangedStructure | ChangedSession | ChangedPeers

	case protocol.ClockState:
		r.mu.Lock()
		r.clock.Tempo, r.clock.Beat, r.clock.Micros, r.clock.Quantum = m.Tempo, m.Beat, m.Micros, m.Quantum
		r.mu.Unlock()
		return ChangedClock

	case protocol.FramePosition:
		r.mu.Lock()
		r.positions = append([][3]int(nil), m.Positions...)
		r.mu.Unlock()
		return ChangedPositions

	case protocol.Signal:
		switch m {
		case protocol.TransportStarted, protocol.TransportStopped:
			r.mu.Lock()
			r.clock.Playing = m == protocol.TransportStarted
			r.mu.Unlock()
			return ChangedTransport
		}
		return 0

	case protocol.InternalError:
		glog.Errorf("server: %s", m.Message)
		r.Logs.Add(LogError, m.Message)
		return ChangedLogs

	case protocol.LogString:
		r.Logs.Add(LogInfo, m.Message)
		return ChangedLogs

	case protocol.ChatReceived:
		r.Logs.Add(LogChat, m.Text)
		return ChangedLogs

	case protocol.ConnectionRefused:
		glog.Errorf("server refused connection: %s", m.Reason)
		r.mu.Lock()
		r.refused = m.Reason
		r.mu.Unlock()
		r.Logs.Add(LogError, "connection refused: "+m.Reason)
		return ChangedLogs

	case protocol.PeersUpdated:
		r.Peers.SetNames(m.Peers)
		return ChangedPeers

	case protocol.PeerGridSelectionUpdate:
		r.Peers.SetSelection(m.Peer, m.Selection.Grid())
		return ChangedPeers

	case protocol.PeerStartedEditing:
		r.Peers.StartedEditing(m.Peer, localedits.Key{Line: m.Line, Frame: m.Frame})
		return ChangedPeers

	case protocol.PeerStoppedEditing:
		r.Peers.StoppedEditing(m.Peer, localedits.Key{Line: m.Line, Frame: m.Frame})
		return ChangedPeers

	case protocol.Unknown:
		glog.V(1).Infof("ignoring server message %s", m.Variant)
		return 0

	default:
		return 0
	}
}

func (r *Replica) refresh() {
	if r.Refresh != nil {
		r.Refresh()
	}
}
