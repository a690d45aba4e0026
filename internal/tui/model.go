package tui

import (
	"errors"
	"fmt"
	"time"

	"sova-cli/internal/localedits"
	"sova-cli/internal/protocol"
	"sova-cli/internal/replica"
	"sova-cli/internal/selection"
	"sova-cli/internal/session"
	"sova-cli/internal/snap"
	"sova-cli/internal/store"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalEdit
	modalScript
	modalChat
	modalHelp
)

// serverMsg carries one decoded server message into the event loop.
type serverMsg struct{ msg protocol.ServerMessage }

// disconnectedMsg is delivered once when the connection ends.
type disconnectedMsg struct{ err error }

type flashDoneMsg struct{ seq int }

const flashFor = 4 * time.Second

const (
	minCellsPerBeat = 1
	maxCellsPerBeat = 64
	minSnap         = 1.0 / 64
	maxSnap         = 4
)

// connection is the live link to the server; *client.Client implements it.
type connection interface {
	session.Sender
	Done() <-chan struct{}
	Wait() error
}

// Options wires the editor. Replica and Sender are required.
type Options struct {
	Server  string
	Replica *replica.Replica
	Sender  session.Sender
	Snap    *snap.Setting
	Store   store.Store
	Config  *store.Config
	// Inbox delivers server messages; nil in tests, which feed serverMsg directly.
	Inbox <-chan protocol.ServerMessage
	Conn  connection
}

type appModel struct {
	server string
	rep    *replica.Replica
	tl     *session.Timeline
	sender session.Sender
	snap   *snap.Setting
	store  store.Store
	inbox  <-chan protocol.ServerMessage
	conn   connection

	keys keyMap
	help help.Model

	width, height int

	sel       selection.Grid
	connected bool

	modal  modalKind
	input  textinput.Model
	script textarea.Model
	// scriptKey is the frame the script editor is open on; reindexed with the scene.
	scriptKey  localedits.Key
	scriptLang string

	flash    string
	flashErr bool
	flashSeq int

	showLogs  bool
	showPeers bool
}

func newAppModel(o Options) appModel {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 256

	ta := textarea.New()
	ta.ShowLineNumbers = true
	ta.Prompt = ""
	ta.CharLimit = 0

	sn := o.Snap
	if sn == nil {
		sn = snap.NewSetting(o.Config.Snap())
	}

	m := appModel{
		server: o.Server,
		rep:    o.Replica,
		tl:     o.Replica.Timeline,
		sender: o.Sender,
		snap:   sn,
		store:  o.Store,
		inbox:  o.Inbox,
		conn:   o.Conn,
		keys:   defaultKeyMap(),
		help:   help.New(),
		input:  in,
		script: ta,
		width:  80,
		height: 24,
		// A sender without a server behind it (tests) counts as connected.
		connected: o.Inbox == nil,
	}

	if st, err := o.Store.LoadTUIState(); err == nil && st != nil {
		m.showLogs = st.ShowLogs
		m.showPeers = st.ShowPeers
		if st.Server == o.Server {
			m.sel = selection.Grid{
				Start: selection.Cell{Row: st.SelectionStart[0], Col: st.SelectionStart[1]},
				End:   selection.Cell{Row: st.SelectionEnd[0], Col: st.SelectionEnd[1]},
			}
		}
	}
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.waitDisconnect())
}

// listen blocks on the next server message.
func (m appModel) listen() tea.Cmd {
	if m.inbox == nil {
		return nil
	}
	inbox := m.inbox
	return func() tea.Msg {
		msg, ok := <-inbox
		if !ok {
			return nil
		}
		return serverMsg{msg: msg}
	}
}

func (m appModel) waitDisconnect() tea.Cmd {
	if m.conn == nil {
		return nil
	}
	conn := m.conn
	return func() tea.Msg {
		<-conn.Done()
		return disconnectedMsg{err: conn.Wait()}
	}
}

// Update wraps update so that every new flash message gets its expiry timer.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	seq := m.flashSeq
	next, cmd := m.update(msg)
	nm, ok := next.(appModel)
	if ok && nm.flashSeq != seq {
		cmd = tea.Batch(cmd, flashTimeout(nm.flashSeq))
	}
	return next, cmd
}

func flashTimeout(seq int) tea.Cmd {
	return tea.Tick(flashFor, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}

func (m appModel) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, min(60, msg.Width-20))
		m.script.SetWidth(max(20, msg.Width-4))
		m.script.SetHeight(max(3, msg.Height/2))
		return m, nil

	case serverMsg:
		m = m.applyServer(msg.msg)
		return m, m.listen()

	case disconnectedMsg:
		m.connected = false
		m.tl.Cancel()
		if msg.err != nil {
			return m.setFlash(fmt.Sprintf("disconnected: %v", msg.err), true)
		}
		return m.setFlash("disconnected", true)

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.flashErr = false
		}
		return m, nil

	case tea.MouseMsg:
		// A modal swallows the pointer, except the release that ends a gesture begun before
		// it opened.
		if m.modal != modalNone && msg.Action != tea.MouseActionRelease {
			return m, nil
		}
		return m.updateMouse(msg)

	case tea.KeyMsg:
		switch m.modal {
		case modalEdit:
			return m.updateEdit(msg)
		case modalScript:
			return m.updateScript(msg)
		case modalChat:
			return m.updateChat(msg)
		case modalHelp:
			m.modal = modalNone
			return m, nil
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

// applyServer folds one server message into the replica and keeps the view-local state
// (selection, open editors) consistent with it.
func (m appModel) applyServer(msg protocol.ServerMessage) appModel {
	m = m.rekeyScript(msg)
	ch := m.rep.Apply(msg)
	if _, ok := msg.(protocol.Hello); ok {
		m.connected = true
	}
	if ch.Has(replica.ChangedScene) || ch.Has(replica.ChangedStructure) {
		m.sel.Clamp(m.rep.Scene.Current())
	}
	if m.modal == modalEdit {
		if _, ok := m.tl.Editing(); !ok {
			m.modal = modalNone
			m.input.Blur()
			m, _ = m.setFlash("frame removed while editing", true)
		}
	}
	if m.modal == modalScript && ch.Has(replica.ChangedScene) {
		if _, ok := m.rep.Scene.Frame(m.scriptKey.Line, m.scriptKey.Frame); !ok {
			m = m.closeScript()
			m, _ = m.setFlash("frame removed while editing", true)
		}
	}
	if ch.Has(replica.ChangedLogs) {
		if r := m.rep.Refused(); r != "" {
			m, _ = m.setFlash("connection refused: "+r, true)
		}
	}
	return m
}

// rekeyScript keeps the script editor on the same logical frame across structural
// notifications, closing it when that frame goes away.
func (m appModel) rekeyScript(msg protocol.ServerMessage) appModel {
	if m.modal != modalScript {
		return m
	}
	k := &m.scriptKey
	switch n := msg.(type) {
	case protocol.FrameRemoved:
		if k.Line == n.Line {
			if k.Frame == n.Frame {
				m = m.closeScript()
				m, _ = m.setFlash("frame removed while editing", true)
				return m
			}
			if k.Frame > n.Frame {
				k.Frame--
			}
		}
	case protocol.LineRemoved:
		if k.Line == n.Line {
			m = m.closeScript()
			m, _ = m.setFlash("line removed while editing", true)
			return m
		}
		if k.Line > n.Line {
			k.Line--
		}
	case protocol.FrameInserted:
		if k.Line == n.Line && k.Frame >= n.Frame {
			k.Frame++
		}
	case protocol.LineInserted:
		if k.Line >= n.Line {
			k.Line++
		}
	}
	return m
}

// send hands msg to the server, flashing the error when it cannot be delivered.
func (m appModel) send(msg protocol.ClientMessage) (appModel, error) {
	if m.sender == nil {
		err := errors.New("not connected")
		m, _ = m.setFlash(err.Error(), true)
		return m, err
	}
	if err := m.sender.Send(msg); err != nil {
		glog.Warningf("tui: send %s: %v", msg.Variant(), err)
		m, _ = m.setFlash(fmt.Sprintf("%s: %v", msg.Variant(), err), true)
		return m, err
	}
	return m, nil
}

// setFlash shows s in the status line; Update arms the timer that clears it.
func (m appModel) setFlash(s string, isErr bool) (appModel, tea.Cmd) {
	m.flashSeq++
	m.flash = s
	m.flashErr = isErr
	return m, nil
}

func (m appModel) saveState() {
	st := &store.TUIState{
		Version:        1,
		Server:         m.server,
		SelectionStart: [2]int{m.sel.Start.Row, m.sel.Start.Col},
		SelectionEnd:   [2]int{m.sel.End.Row, m.sel.End.Col},
		ShowLogs:       m.showLogs,
		ShowPeers:      m.showPeers,
	}
	if err := m.store.SaveTUIState(st); err != nil {
		glog.Warningf("tui: save state: %v", err)
	}
}

// report turns a session outcome into user feedback.
func (m appModel) report(what string, res session.CommitResult) (appModel, tea.Cmd) {
	switch res.Outcome {
	case session.Committed:
		return m.setFlash(what+" sent", false)
	case session.Failed:
		return m.setFlash(fmt.Sprintf("%s failed: %v", what, res.Err), true)
	case session.Discarded:
		if errors.Is(res.Err, session.ErrNoFrame) {
			return m.setFlash(what+": frame no longer exists", true)
		}
	}
	return m, nil
}
