package tui

import (
	"fmt"
	"math"
	"strings"

	"sova-cli/internal/localedits"
	"sova-cli/internal/model"
	"sova-cli/internal/session"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

const (
	// gridTop is the first screen row of the grid: row 0 is the title bar, row 1 the header.
	gridTop = 2
	// labelW is the gutter left of the grid (line labels, or beat numbers when vertical).
	labelW = 5
	// colW is the width of one line in the vertical layout, including a one-cell gap.
	colW = 14
)

// cellRect is the screen area of one frame.
type cellRect struct {
	line, frame int
	x, y, w, h  int
}

func (r cellRect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// onHandle reports whether (x, y) is on the frame's trailing edge, where a press resizes.
func (r cellRect) onHandle(x, y int, vertical bool) bool {
	if vertical {
		return r.h >= 2 && y == r.y+r.h-1
	}
	return r.w >= 2 && x == r.x+r.w-1
}

type gridGeometry struct {
	vertical bool
	cells    []cellRect
	// ends holds, per line, the first screen coordinate past its last frame along the
	// time axis.
	ends []int
}

// frameSpan is the on-screen length of a frame along the time axis: one cell per
// 1/PixelsPerBeat beats, covering every repetition.
func frameSpan(beats float64, reps int, ppb float64) int {
	return max(1, int(math.Round(beats*float64(reps)*ppb)))
}

// layoutGrid places every frame of sc. The frame under an open resize uses its preview
// duration so the gesture is visible before it is committed.
func layoutGrid(sc *model.Scene, tl *session.Timeline) gridGeometry {
	l := tl.Layout()
	g := gridGeometry{vertical: l.Vertical}
	for li := 0; li < sc.LineCount(); li++ {
		line, _ := sc.Line(li)
		pos := labelW
		if l.Vertical {
			pos = gridTop
		}
		for fi, f := range line.Frames {
			beats := f.Beats()
			if p, ok := tl.PreviewDuration(li, fi); ok {
				beats = p
			}
			span := frameSpan(beats, f.Reps(), l.PixelsPerBeat)
			r := cellRect{line: li, frame: fi}
			if l.Vertical {
				r.x, r.y, r.w, r.h = labelW+li*colW, pos, colW-1, span
			} else {
				r.x, r.y, r.w, r.h = pos, gridTop+li, span, 1
			}
			g.cells = append(g.cells, r)
			pos += span
		}
		g.ends = append(g.ends, pos)
	}
	return g
}

// hit maps a screen position to a grid slot. frame may equal the line's frame count,
// meaning the empty slot after its last frame.
func (g gridGeometry) hit(x, y int) (line, frame int, handle, ok bool) {
	for _, r := range g.cells {
		if r.contains(x, y) {
			return r.line, r.frame, r.onHandle(x, y, g.vertical), true
		}
	}
	if g.vertical {
		if x < labelW || y < gridTop {
			return 0, 0, false, false
		}
		line = (x - labelW) / colW
	} else {
		if x < labelW || y < gridTop {
			return 0, 0, false, false
		}
		line = y - gridTop
	}
	if line < 0 || line >= len(g.ends) {
		return 0, 0, false, false
	}
	along := x
	if g.vertical {
		along = y
	}
	if along < g.ends[line] {
		return 0, 0, false, false
	}
	n := 0
	for _, r := range g.cells {
		if r.line == line {
			n++
		}
	}
	return line, n, false, true
}

// cellState is everything that changes how one frame is drawn.
type cellState struct {
	selected bool
	playing  bool
	draft    bool
	peers    []string
	dropHere bool
}

func cellLabel(f model.Frame, st cellState) string {
	var b strings.Builder
	if st.dropHere {
		b.WriteString(dropGlyph())
	}
	if st.playing {
		b.WriteString(glyphPlaying())
	}
	if !f.Enabled {
		b.WriteString(glyphDisabled())
	}
	if st.draft {
		b.WriteString(glyphDraft())
	}
	if len(st.peers) > 0 {
		b.WriteString(glyphPeer())
	}
	name := f.DisplayName()
	if name == "" {
		name = formatBeats(f.Beats())
		if f.Reps() > 1 {
			name += fmt.Sprintf("x%d", f.Reps())
		}
	}
	b.WriteString(name)
	return b.String()
}

func dropGlyph() string {
	return glyphDropH()
}

func cellStyle(frame int, f model.Frame, st cellState) lipgloss.Style {
	bg := colorFrameBgA
	if frame%2 == 1 {
		bg = colorFrameBgB
	}
	s := lipgloss.NewStyle().Background(bg).Foreground(colorSurfaceFg)
	if st.selected {
		s = s.Background(colorSelectedBg).Foreground(colorSelectedFg)
	}
	switch {
	case st.playing:
		s = s.Foreground(colorPlaying).Bold(true)
	case len(st.peers) > 0:
		s = s.Foreground(colorPeer)
	case st.draft:
		s = s.Foreground(colorDraft)
	case !f.Enabled:
		s = s.Foreground(colorMuted)
	}
	return s
}

// fit pads or cuts s to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if xansi.StringWidth(s) > w {
		return xansi.Truncate(s, w, "")
	}
	return s + strings.Repeat(" ", w-xansi.StringWidth(s))
}

// renderGrid draws the scene into rows of width cells.
func (m appModel) renderGrid(width, height int) []string {
	sc := m.rep.Scene.Current()
	if sc.LineCount() == 0 {
		msg := "empty scene"
		if !m.connected {
			msg = "waiting for the server…"
		}
		return []string{styleMuted().Render(msg)}
	}
	g := layoutGrid(sc, m.tl)

	canvas := newCanvas(width, max(1, height))
	header := m.renderHeader(sc, g)
	canvas.put(0, 0, header)

	drag, dragging := m.tl.Dragging()
	for _, r := range g.cells {
		f, _ := sc.Frame(r.line, r.frame)
		st := cellState{
			selected: m.sel.Contains(r.frame, r.line),
			draft:    m.hasDraft(r.line, r.frame),
			peers:    m.rep.Peers.EditorsOf(r.line, r.frame),
		}
		if p, ok := m.rep.PlayingFrame(r.line); ok && p == r.frame {
			st.playing = true
		}
		if dragging && drag.TargetLine == r.line && drag.TargetFrame == r.frame {
			st.dropHere = true
		}
		style := cellStyle(r.frame, f, st)
		label := cellLabel(f, st)
		if g.vertical {
			for dy := 0; dy < r.h; dy++ {
				text := ""
				if dy == 0 {
					text = label
				}
				if r.h >= 2 && dy == r.h-1 {
					text = strings.Repeat(glyphResizeV(), r.w)
				}
				canvas.put(r.x, r.y-gridTop+1+dy, style.Render(fit(text, r.w)))
			}
			continue
		}
		text := fit(label, r.w)
		if r.w >= 2 {
			text = fit(label, r.w-1) + glyphResizeH()
		}
		canvas.put(r.x, r.y-gridTop+1, style.Render(text))
	}

	// A drop past the last frame of a line has no cell to mark.
	if dragging {
		if t, ok := m.tl.DropIndicator(drag.TargetLine); ok && t == sc.FrameCount(drag.TargetLine) && drag.TargetLine < len(g.ends) {
			mark := lipgloss.NewStyle().Foreground(colorAccent).Render(glyphDropH())
			if g.vertical {
				mark = lipgloss.NewStyle().Foreground(colorAccent).Render(strings.Repeat(glyphDropV(), colW-1))
				canvas.put(labelW+drag.TargetLine*colW, g.ends[drag.TargetLine]-gridTop+1, mark)
			} else {
				canvas.put(g.ends[drag.TargetLine], drag.TargetLine+1, mark)
			}
		}
	}

	if !g.vertical {
		for li := 0; li < sc.LineCount(); li++ {
			canvas.put(0, li+1, m.lineLabel(li))
		}
	}
	return canvas.lines()
}

func (m appModel) lineLabel(line int) string {
	st := styleMuted()
	if m.sel.Cursor().Col == line {
		st = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	}
	return st.Render(fit(fmt.Sprintf("L%d", line), labelW-1)) + glyphSeparator()
}

func (m appModel) renderHeader(sc *model.Scene, g gridGeometry) string {
	if g.vertical {
		var b strings.Builder
		b.WriteString(strings.Repeat(" ", labelW))
		for li := 0; li < sc.LineCount(); li++ {
			label := fmt.Sprintf("L%d", li)
			st := styleMuted()
			if m.sel.Cursor().Col == li {
				st = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
			}
			b.WriteString(st.Render(fit(label, colW)))
		}
		return b.String()
	}
	// Beat ruler: a tick at every whole beat.
	ppb := m.tl.Layout().PixelsPerBeat
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", labelW))
	for beat := 0; ; beat++ {
		col := int(math.Round(float64(beat) * ppb))
		if labelW+col >= m.width || beat > 4096 {
			break
		}
		label := fmt.Sprintf("%d", beat)
		next := int(math.Round(float64(beat+1) * ppb))
		if next-col <= len(label) {
			label = glyphHRule()
		}
		b.WriteString(fit(label, max(1, next-col)))
	}
	return styleMuted().Render(b.String())
}

func (m appModel) hasDraft(line, frame int) bool {
	_, ok := m.rep.Edits.Get(localedits.Key{Line: line, Frame: frame})
	return ok
}

func formatBeats(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
