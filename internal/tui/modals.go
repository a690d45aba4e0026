package tui

import (
	"fmt"
	"strings"

	"sova-cli/internal/localedits"
	"sova-cli/internal/model"
	"sova-cli/internal/protocol"
	"sova-cli/internal/session"

	"github.com/charmbracelet/lipgloss"
	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
)

func (m appModel) openEdit(kind session.EditKind) (tea.Model, tea.Cmd) {
	c := m.sel.Cursor()
	e, err := m.tl.StartEdit(kind, c.Col, c.Row)
	if err != nil {
		return m.setFlash("no frame here", true)
	}
	m.modal = modalEdit
	m.input.SetValue(e.Value)
	m.input.CursorEnd()
	m.input.Placeholder = kind.String()
	m = m.startedEditing(localedits.Key{Line: e.Line, Frame: e.Frame})
	cmd := m.input.Focus()
	return m, cmd
}

// updateEdit drives the inline field editor. enter commits, alt+enter commits with half
// snap granularity, esc cancels.
func (m appModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e, ok := m.tl.Editing()
	if !ok {
		m.modal = modalNone
		m.input.Blur()
		return m, nil
	}
	k := localedits.Key{Line: e.Line, Frame: e.Frame}

	switch msg.Type {
	case tea.KeyEsc:
		m.tl.CancelEdit()
		m.modal = modalNone
		m.input.Blur()
		return m.stoppedEditing(k), nil

	case tea.KeyEnter:
		m.tl.UpdateValue(m.input.Value())
		res := m.tl.CommitEdit(msg.Alt)
		switch res.Outcome {
		case session.Failed:
			// The session is still open with the typed value; keep the field up for a retry.
			return m.setFlash(fmt.Sprintf("%s not saved: %v", e.Kind, res.Err), true)
		case session.Discarded:
			m.modal = modalNone
			m.input.Blur()
			m = m.stoppedEditing(k)
			if res.Err != nil {
				return m.report(e.Kind.String(), res)
			}
			return m.setFlash(fmt.Sprintf("invalid %s %q", e.Kind, strings.TrimSpace(m.input.Value())), true)
		default:
			m.modal = modalNone
			m.input.Blur()
			m = m.stoppedEditing(k)
			return m.report(e.Kind.String(), res)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.tl.UpdateValue(m.input.Value())
	return m, cmd
}

// openScript opens the script editor on the cursor frame. A buffered local edit wins over
// the server's content.
func (m appModel) openScript() (tea.Model, tea.Cmd) {
	c := m.sel.Cursor()
	f, ok := m.rep.Scene.Frame(c.Col, c.Row)
	if !ok {
		return m.setFlash("no frame here", true)
	}
	k := localedits.Key{Line: c.Col, Frame: c.Row}
	content, lang := f.Script.Content, f.Script.Lang
	if e, ok := m.rep.Edits.Get(k); ok {
		content, lang = e.Content, e.Lang
	}
	if lang == "" {
		lang = model.DefaultLang
	}
	m.modal = modalScript
	m.scriptKey = k
	m.scriptLang = lang
	m.script.SetValue(content)
	m = m.startedEditing(k)
	cmd := m.script.Focus()
	return m, cmd
}

func (m appModel) closeScript() appModel {
	m.modal = modalNone
	m.script.Blur()
	return m
}

// updateScript drives the script editor. Every keystroke lands in the local edit buffer;
// ctrl+s sends the script and drops the buffered copy once the send succeeded, esc closes
// and keeps the draft.
func (m appModel) updateScript(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.scriptKey
	switch msg.String() {
	case "esc":
		m = m.closeScript()
		m = m.stoppedEditing(k)
		if _, ok := m.rep.Edits.Get(k); ok {
			return m.setFlash("draft kept", false)
		}
		return m, nil

	case "ctrl+s":
		f, ok := m.rep.Scene.Frame(k.Line, k.Frame)
		if !ok {
			return m.setFlash("frame no longer exists", true)
		}
		f = f.Clone()
		f.Script = model.Script{Content: m.script.Value(), Lang: m.scriptLang}
		var err error
		m, err = m.send(protocol.SetFrames{
			Frames: []protocol.FrameUpdate{{Line: k.Line, Frame: k.Frame, Value: f}},
			Timing: protocol.Immediate(),
		})
		if err != nil {
			return m, nil
		}
		m.rep.Edits.Clear(k)
		m = m.closeScript()
		m = m.stoppedEditing(k)
		return m.setFlash("script sent", false)
	}

	before := m.script.Value()
	var cmd tea.Cmd
	m.script, cmd = m.script.Update(msg)
	if v := m.script.Value(); v != before {
		m.rep.Edits.Set(k, v, m.scriptLang)
	}
	return m, cmd
}

func (m appModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.modal = modalNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.modal = modalNone
		m.input.Blur()
		if text == "" {
			return m, nil
		}
		m, _ = m.send(protocol.Chat{Text: text})
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// renderInputLine draws a single-line input on the input background, never wider than
// bodyW.
func renderInputLine(bodyW int, label, inputView string) string {
	if bodyW < 10 {
		bodyW = 10
	}
	inputView = strings.ReplaceAll(inputView, "\n", " ")
	inputView = strings.ReplaceAll(inputView, "\r", " ")
	head := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render(label)
	line := lipgloss.PlaceHorizontal(
		bodyW,
		lipgloss.Left,
		" "+head+" "+inputView+" ",
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(colorInputBg),
	)
	if xansi.StringWidth(line) > bodyW {
		line = xansi.Cut(line, 0, bodyW) + "\x1b[0m"
	}
	return line
}
