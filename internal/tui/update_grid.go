package tui

import (
	"fmt"

	"sova-cli/internal/localedits"
	"sova-cli/internal/protocol"
	"sova-cli/internal/selection"
	"sova-cli/internal/session"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// screenDirection maps an arrow key to a grid direction. Rows are frames and columns are
// lines; in the horizontal layout lines are drawn as screen rows, so the axes swap.
func screenDirection(arrow selection.Direction, vertical bool) selection.Direction {
	if vertical {
		return arrow
	}
	switch arrow {
	case selection.Up:
		return selection.Left
	case selection.Down:
		return selection.Right
	case selection.Left:
		return selection.Up
	default:
		return selection.Down
	}
}

func (m appModel) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.tl.Cancel()
		m.saveState()
		return m, tea.Quit

	case key.Matches(msg, k.Up):
		return m.moveCursor(selection.Up, false)
	case key.Matches(msg, k.Down):
		return m.moveCursor(selection.Down, false)
	case key.Matches(msg, k.Left):
		return m.moveCursor(selection.Left, false)
	case key.Matches(msg, k.Right):
		return m.moveCursor(selection.Right, false)
	case key.Matches(msg, k.ExtendUp):
		return m.moveCursor(selection.Up, true)
	case key.Matches(msg, k.ExtendDown):
		return m.moveCursor(selection.Down, true)
	case key.Matches(msg, k.ExtendLeft):
		return m.moveCursor(selection.Left, true)
	case key.Matches(msg, k.ExtendRight):
		return m.moveCursor(selection.Right, true)

	case key.Matches(msg, k.EditDuration):
		return m.openEdit(session.EditDuration)
	case key.Matches(msg, k.EditReps):
		return m.openEdit(session.EditRepetitions)
	case key.Matches(msg, k.EditName):
		return m.openEdit(session.EditName)
	case key.Matches(msg, k.EditScript):
		return m.openScript()

	case key.Matches(msg, k.InsertFrame):
		return m.insertFrame()
	case key.Matches(msg, k.RemoveFrame):
		return m.removeFrame()

	case key.Matches(msg, k.Transport):
		var out protocol.ClientMessage = protocol.TransportStart{Timing: protocol.Immediate()}
		if m.rep.Clock().Playing {
			out = protocol.TransportStop{Timing: protocol.Immediate()}
		}
		m, _ = m.send(out)
		return m, nil

	case key.Matches(msg, k.ZoomIn):
		return m.zoom(2)
	case key.Matches(msg, k.ZoomOut):
		return m.zoom(0.5)
	case key.Matches(msg, k.SnapFiner):
		return m.scaleSnap(0.5)
	case key.Matches(msg, k.SnapCoarser):
		return m.scaleSnap(2)
	case key.Matches(msg, k.ToggleLayout):
		l := m.tl.Layout()
		l.Vertical = !l.Vertical
		m.tl.SetLayout(l)
		return m, nil

	case key.Matches(msg, k.Chat):
		m.modal = modalChat
		m.input.SetValue("")
		m.input.Placeholder = "message"
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, k.ToggleLogs):
		m.showLogs = !m.showLogs
		return m, nil
	case key.Matches(msg, k.TogglePeers):
		m.showPeers = !m.showPeers
		return m, nil
	case key.Matches(msg, k.Help):
		m.modal = modalHelp
		return m, nil
	case key.Matches(msg, k.Cancel):
		m.tl.CancelDrag()
		m.tl.CancelResize()
		return m, nil
	}
	return m, nil
}

func (m appModel) moveCursor(arrow selection.Direction, extend bool) (tea.Model, tea.Cmd) {
	before := m.sel
	m.sel.MoveCursor(m.rep.Scene.Current(), screenDirection(arrow, m.tl.Layout().Vertical), extend)
	if m.sel == before {
		return m, nil
	}
	return m.publishSelection()
}

func (m appModel) publishSelection() (tea.Model, tea.Cmd) {
	m, _ = m.send(protocol.UpdateGridSelection{Selection: protocol.SelectionToWire(m.sel)})
	return m, nil
}

func (m appModel) zoom(factor float64) (tea.Model, tea.Cmd) {
	l := m.tl.Layout()
	l.PixelsPerBeat = min(maxCellsPerBeat, max(minCellsPerBeat, l.PixelsPerBeat*factor))
	m.tl.SetLayout(l)
	return m.setFlash(fmt.Sprintf("%g cells per beat", l.PixelsPerBeat), false)
}

func (m appModel) scaleSnap(factor float64) (tea.Model, tea.Cmd) {
	v := min(maxSnap, max(minSnap, m.snap.Get()*factor))
	if err := m.snap.Set(v); err != nil {
		return m.setFlash(err.Error(), true)
	}
	return m.setFlash(fmt.Sprintf("snap %s beats", formatBeats(v)), false)
}

func (m appModel) insertFrame() (tea.Model, tea.Cmd) {
	sc := m.rep.Scene.Current()
	c := m.sel.Cursor()
	if c.Col >= sc.LineCount() {
		return m.setFlash("no line to insert into", true)
	}
	at := 0
	if sc.FrameCount(c.Col) > 0 {
		at = c.Row + 1
	}
	m, _ = m.send(protocol.InsertFrame{Line: c.Col, Frame: at, Duration: 1, Timing: protocol.Immediate()})
	return m, nil
}

func (m appModel) removeFrame() (tea.Model, tea.Cmd) {
	c := m.sel.Cursor()
	if _, ok := m.rep.Scene.Frame(c.Col, c.Row); !ok {
		return m.setFlash("no frame here", true)
	}
	m, _ = m.send(protocol.RemoveFrame{Line: c.Col, Frame: c.Row, Timing: protocol.Immediate()})
	return m, nil
}

func (m appModel) startedEditing(k localedits.Key) appModel {
	m, _ = m.send(protocol.StartedEditingFrame{Line: k.Line, Frame: k.Frame})
	return m
}

func (m appModel) stoppedEditing(k localedits.Key) appModel {
	m, _ = m.send(protocol.StoppedEditingFrame{Line: k.Line, Frame: k.Frame})
	return m
}
