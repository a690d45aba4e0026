package tui

import (
	"fmt"
	"strings"

	"sova-cli/internal/docs"
	"sova-cli/internal/replica"

	"github.com/charmbracelet/lipgloss"
)

const (
	logRows  = 5
	peerRows = 5
)

func (m appModel) View() string {
	if m.modal == modalHelp {
		return m.viewHelp()
	}

	var footer []string
	if m.showPeers {
		footer = append(footer, m.viewPeers()...)
	}
	if m.showLogs {
		footer = append(footer, m.viewLogs()...)
	}
	switch m.modal {
	case modalEdit:
		e, _ := m.tl.Editing()
		label := fmt.Sprintf("%s L%d F%d", e.Kind, e.Line, e.Frame)
		footer = append(footer, renderInputLine(m.width, label, m.input.View()))
	case modalChat:
		footer = append(footer, renderInputLine(m.width, "chat", m.input.View()))
	}
	footer = append(footer, m.viewStatus())

	var body []string
	if m.modal == modalScript {
		body = m.viewScript()
	} else {
		gridH := m.height - 1 - len(footer)
		body = m.renderGrid(m.width, gridH)
	}

	lines := []string{m.viewTitle()}
	lines = append(lines, body...)
	for len(lines)+len(footer) < m.height {
		lines = append(lines, "")
	}
	lines = append(lines, footer...)
	return strings.Join(lines, "\n")
}

func (m appModel) viewTitle() string {
	c := m.rep.Clock()
	state := glyphPaused()
	if c.Playing {
		state = lipgloss.NewStyle().Foreground(colorPlaying).Render(glyphPlaying())
	}
	who := m.rep.Peers.Self()
	if who == "" {
		who = "?"
	}
	conn := m.server
	if !m.connected {
		conn += " (offline)"
	}
	l := m.tl.Layout()
	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("sova"),
		who + "@" + conn,
		fmt.Sprintf("%s %.1f bpm", state, c.Tempo),
		fmt.Sprintf("beat %.2f", c.Beat),
		"snap " + formatBeats(m.snap.Get()),
		fmt.Sprintf("%g/beat", l.PixelsPerBeat),
	}
	if n := m.rep.Edits.Len(); n > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorDraft).Render(fmt.Sprintf("%d draft(s)", n)))
	}
	sep := styleMuted().Render(" " + glyphSeparator() + " ")
	return fit(strings.Join(parts, sep), m.width)
}

func (m appModel) viewStatus() string {
	if m.flash != "" {
		if m.flashErr {
			return fit(styleError().Render(m.flash), m.width)
		}
		return fit(m.flash, m.width)
	}
	if r, ok := m.tl.Resizing(); ok {
		return fit(fmt.Sprintf("resize L%d F%d: %s beats (alt for finer snap)", r.Line, r.Frame, formatBeats(r.Preview)), m.width)
	}
	if d, ok := m.tl.Dragging(); ok {
		return fit(fmt.Sprintf("move L%d F%d to L%d F%d", d.SourceLine, d.SourceFrame, d.TargetLine, d.TargetFrame), m.width)
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

func (m appModel) viewPeers() []string {
	rule := styleMuted().Render(fit(glyphHRule()+" peers ", m.width))
	out := []string{rule}
	peers := m.rep.Peers.List()
	if len(peers) == 0 {
		return append(out, styleMuted().Render("nobody else here"))
	}
	for i, p := range peers {
		if i == peerRows {
			out = append(out, styleMuted().Render(fmt.Sprintf("… %d more", len(peers)-peerRows)))
			break
		}
		line := lipgloss.NewStyle().Foreground(colorPeer).Render(p.Name)
		if p.Selection != nil {
			c := p.Selection.Cursor()
			line += fmt.Sprintf("  at L%d F%d", c.Col, c.Row)
		}
		if len(p.Editing) > 0 {
			var keys []string
			for _, k := range p.Editing {
				keys = append(keys, fmt.Sprintf("L%d F%d", k.Line, k.Frame))
			}
			line += "  " + glyphPeer() + " " + strings.Join(keys, ", ")
		}
		out = append(out, fit(line, m.width))
	}
	return out
}

func (m appModel) viewLogs() []string {
	out := []string{styleMuted().Render(fit(glyphHRule()+" log ", m.width))}
	for _, e := range m.rep.Logs.Last(logRows) {
		text := fmt.Sprintf("%s %s", e.At.Format("15:04:05"), e.Message)
		switch e.Level {
		case replica.LogError:
			text = styleError().Render(text)
		case replica.LogChat:
			text = lipgloss.NewStyle().Foreground(colorPeer).Render(text)
		}
		out = append(out, fit(text, m.width))
	}
	return out
}

func (m appModel) viewScript() []string {
	k := m.scriptKey
	head := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("script L%d F%d [%s]", k.Line, k.Frame, m.scriptLang))
	hint := styleMuted().Render("  ctrl+s send " + glyphSeparator() + " esc close (draft kept)")
	lines := []string{head + hint}
	if editors := m.rep.Peers.EditorsOf(k.Line, k.Frame); len(editors) > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorPeer).Render(glyphPeer()+" also editing: "+strings.Join(editors, ", ")))
	}
	return append(lines, strings.Split(m.script.View(), "\n")...)
}

func (m appModel) viewHelp() string {
	md, _ := docs.Get("tui")
	out := renderMarkdown(md, min(m.width, 100))
	m.help.ShowAll = true
	return out + "\n\n" + m.help.View(m.keys) + "\n\n" + styleMuted().Render("press any key to close")
}
