// Package selection implements the rectangular grid selection over a ragged scene.
//
// Rows are frame indices, columns are line indices. Start and End keep the direction of an
// extension gesture; consumers should read the normalized rectangle from Bounds.
package selection

import "sova-cli/internal/model"

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

type Grid struct {
	Start Cell `json:"start"`
	End   Cell `json:"end"`
}

// Rect is a normalized selection: Min holds the smallest row/col, Max the largest.
type Rect struct {
	Min Cell
	Max Cell
}

func (g Grid) Bounds() Rect {
	return Rect{
		Min: Cell{Row: min(g.Start.Row, g.End.Row), Col: min(g.Start.Col, g.End.Col)},
		Max: Cell{Row: max(g.Start.Row, g.End.Row), Col: max(g.Start.Col, g.End.Col)},
	}
}

func (r Rect) Contains(row, col int) bool {
	return row >= r.Min.Row && row <= r.Max.Row && col >= r.Min.Col && col <= r.Max.Col
}

func (g Grid) Contains(row, col int) bool { return g.Bounds().Contains(row, col) }

func (g Grid) IsSingle() bool { return g.Start == g.End }

// Cursor is the cell keyboard-driven commands target.
func (g Grid) Cursor() Cell { return g.End }

// Cells lists every (row, col) of the rectangle that addresses an existing frame,
// column by column.
func (g Grid) Cells(sc *model.Scene) []Cell {
	r := g.Bounds()
	var out []Cell
	for col := r.Min.Col; col <= r.Max.Col; col++ {
		n := sc.FrameCount(col)
		for row := r.Min.Row; row <= r.Max.Row && row < n; row++ {
			out = append(out, Cell{Row: row, Col: col})
		}
	}
	return out
}

func (g *Grid) ResetToCell(row, col int) {
	c := Cell{Row: row, Col: col}
	g.Start = c
	g.End = c
}

// MoveCursor steps the cursor one cell in dir. When extend is set only End moves.
//
// The row is first bounded by the longest line and then pulled up to the last frame of
// the target column, since lines may be shorter than the cursor's row.
func (g *Grid) MoveCursor(sc *model.Scene, dir Direction, extend bool) {
	lines := sc.LineCount()
	maxFrames := sc.MaxFrames()
	row, col := g.End.Row, g.End.Col

	switch dir {
	case Up:
		row--
	case Down:
		row++
	case Left:
		col--
	case Right:
		col++
	}
	row = clamp(row, 0, maxFrames-1)
	col = clamp(col, 0, lines-1)
	if n := sc.FrameCount(col); row >= n {
		row = max(0, n-1)
	}

	next := Cell{Row: row, Col: col}
	if extend {
		g.End = next
		return
	}
	g.Start = next
	g.End = next
}

// Clamp pulls both coordinates back inside the scene. Called on every scene replacement.
func (g *Grid) Clamp(sc *model.Scene) {
	maxRow := sc.MaxFrames() - 1
	maxCol := sc.LineCount() - 1
	g.Start = clampCell(g.Start, maxRow, maxCol)
	g.End = clampCell(g.End, maxRow, maxCol)
}

func clampCell(c Cell, maxRow, maxCol int) Cell {
	return Cell{Row: clamp(c.Row, 0, maxRow), Col: clamp(c.Col, 0, maxCol)}
}

// clamp bounds v to [lo, hi]; an empty range (hi < lo) yields lo.
func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
