package tui

import (
	"sort"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

type segment struct {
	x int
	s string
}

// canvas composes styled strings at absolute columns. Later segments that overlap an
// earlier one lose their overlapping prefix.
type canvas struct {
	w, h int
	rows [][]segment
}

func newCanvas(w, h int) *canvas {
	return &canvas{w: w, h: h, rows: make([][]segment, h)}
}

func (c *canvas) put(x, row int, s string) {
	if row < 0 || row >= c.h || x >= c.w || s == "" {
		return
	}
	c.rows[row] = append(c.rows[row], segment{x: x, s: s})
}

// lines renders every row up to the last non-empty one.
func (c *canvas) lines() []string {
	last := -1
	for i, r := range c.rows {
		if len(r) > 0 {
			last = i
		}
	}
	out := make([]string, 0, last+1)
	for _, segs := range c.rows[:last+1] {
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].x < segs[j].x })
		var b strings.Builder
		cur := 0
		for _, sg := range segs {
			s, x := sg.s, sg.x
			if x < cur {
				s = xansi.Cut(s, cur-x, xansi.StringWidth(s))
				x = cur
			}
			if x > cur {
				b.WriteString(strings.Repeat(" ", x-cur))
				cur = x
			}
			b.WriteString(s)
			cur += xansi.StringWidth(s)
		}
		line := b.String()
		if c.w > 0 && xansi.StringWidth(line) > c.w {
			line = xansi.Truncate(line, c.w, "")
		}
		out = append(out, line)
	}
	return out
}
