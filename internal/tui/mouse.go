package tui

import (
	"sova-cli/internal/protocol"
	"sova-cli/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

func pointerOf(msg tea.MouseMsg) session.Pointer {
	return session.Pointer{X: float64(msg.X), Y: float64(msg.Y), Modifier: msg.Alt || msg.Shift}
}

// updateMouse runs the pointer gestures. A press on a frame's trailing edge starts a
// resize, a press anywhere else on a frame selects it and starts a drag. Motion updates
// the gesture and release commits it.
func (m appModel) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	g := layoutGrid(m.rep.Scene.Current(), m.tl)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		line, frame, handle, ok := g.hit(msg.X, msg.Y)
		if !ok {
			return m, nil
		}
		if _, exists := m.rep.Scene.Frame(line, frame); !exists {
			return m, nil
		}
		if handle {
			if err := m.tl.StartResize(line, frame, pointerOf(msg)); err != nil {
				return m.setFlash(err.Error(), true)
			}
			return m, nil
		}
		before := m.sel
		m.sel.ResetToCell(frame, line)
		if m.sel != before {
			mm, _ := m.publishSelection()
			m = mm.(appModel)
		}
		if err := m.tl.StartDrag(line, frame); err != nil {
			return m.setFlash(err.Error(), true)
		}
		return m, nil

	case tea.MouseActionMotion:
		if m.tl.CapturesPointer() {
			m.tl.PointerMove(pointerOf(msg))
			return m, nil
		}
		if _, dragging := m.tl.Dragging(); dragging {
			if line, frame, _, ok := g.hit(msg.X, msg.Y); ok {
				m.tl.DragOver(line, frame)
			}
		}
		return m, nil

	case tea.MouseActionRelease:
		if m.tl.CapturesPointer() {
			m.tl.PointerMove(pointerOf(msg))
			return m.report("resize", m.tl.PointerRelease())
		}
		if _, dragging := m.tl.Dragging(); dragging {
			return m.report("move", m.tl.Drop(protocol.Immediate()))
		}
	}
	return m, nil
}
