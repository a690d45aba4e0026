package selection

import (
	"testing"

	"sova-cli/internal/model"
)

func raggedScene(counts ...int) *model.Scene {
	sc := &model.Scene{}
	for _, n := range counts {
		l := model.Line{}
		for i := 0; i < n; i++ {
			l.Frames = append(l.Frames, model.DefaultFrame())
		}
		sc.Lines = append(sc.Lines, l)
	}
	return sc
}

func TestBounds_InvariantUnderSwap(t *testing.T) {
	t.Parallel()

	grids := []Grid{
		{Start: Cell{0, 0}, End: Cell{3, 2}},
		{Start: Cell{5, 1}, End: Cell{2, 4}},
		{Start: Cell{2, 2}, End: Cell{2, 2}},
	}
	for _, g := range grids {
		swapped := Grid{Start: g.End, End: g.Start}
		if g.Bounds() != swapped.Bounds() {
			t.Fatalf("bounds differ for %#v: %#v vs %#v", g, g.Bounds(), swapped.Bounds())
		}
		b := g.Bounds()
		if b.Min.Row > b.Max.Row || b.Min.Col > b.Max.Col {
			t.Fatalf("bounds not normalized: %#v", b)
		}
	}
}

func TestMoveCursor_ClampsRowIntoShorterColumn(t *testing.T) {
	t.Parallel()

	sc := raggedScene(5, 2, 4)
	g := Grid{}
	g.ResetToCell(4, 0)

	g.MoveCursor(sc, Right, false)
	if want := (Cell{Row: 1, Col: 1}); g.Start != want || g.End != want {
		t.Fatalf("expected collapse to %v, got %#v", want, g)
	}

	g.MoveCursor(sc, Down, false)
	if g.End != (Cell{Row: 1, Col: 1}) {
		t.Fatalf("down in a 2-frame column should stay on row 1, got %v", g.End)
	}

	g.MoveCursor(sc, Right, false)
	g.MoveCursor(sc, Right, false)
	if g.End != (Cell{Row: 1, Col: 2}) {
		t.Fatalf("column should clamp to last line, got %v", g.End)
	}
}

func TestMoveCursor_EdgesClamp(t *testing.T) {
	t.Parallel()

	sc := raggedScene(3, 3)
	g := Grid{}
	g.MoveCursor(sc, Up, false)
	g.MoveCursor(sc, Left, false)
	if g.End != (Cell{0, 0}) {
		t.Fatalf("expected to stay at origin, got %v", g.End)
	}
	for i := 0; i < 10; i++ {
		g.MoveCursor(sc, Down, false)
	}
	if g.End.Row != 2 {
		t.Fatalf("expected row clamped to 2, got %d", g.End.Row)
	}
}

func TestMoveCursor_ExtendKeepsStart(t *testing.T) {
	t.Parallel()

	sc := raggedScene(4, 4, 4)
	g := Grid{}
	g.ResetToCell(1, 0)
	g.MoveCursor(sc, Down, true)
	g.MoveCursor(sc, Right, true)
	if g.Start != (Cell{1, 0}) {
		t.Fatalf("extend must not move start, got %v", g.Start)
	}
	if g.End != (Cell{2, 1}) {
		t.Fatalf("unexpected end %v", g.End)
	}
	if !g.Contains(1, 1) || g.Contains(0, 0) || g.IsSingle() {
		t.Fatalf("unexpected containment for %#v", g)
	}

	g.MoveCursor(sc, Left, false)
	if !g.IsSingle() || g.End != (Cell{2, 0}) {
		t.Fatalf("plain move should collapse, got %#v", g)
	}
}

func TestClamp_OnSceneShrink(t *testing.T) {
	t.Parallel()

	g := Grid{Start: Cell{7, 4}, End: Cell{1, 1}}
	g.Clamp(raggedScene(3, 2))
	if g.Start != (Cell{2, 1}) || g.End != (Cell{1, 1}) {
		t.Fatalf("unexpected clamp result %#v", g)
	}

	g.Clamp(&model.Scene{})
	if g.Start != (Cell{}) || g.End != (Cell{}) {
		t.Fatalf("empty scene should clamp to origin, got %#v", g)
	}
}

func TestMoveCursor_EmptyScene(t *testing.T) {
	t.Parallel()

	g := Grid{}
	g.MoveCursor(&model.Scene{}, Right, false)
	if g.End != (Cell{}) {
		t.Fatalf("expected origin, got %v", g.End)
	}
}

func TestCells_SkipsMissingFrames(t *testing.T) {
	t.Parallel()

	sc := raggedScene(3, 1)
	g := Grid{Start: Cell{0, 0}, End: Cell{2, 1}}
	cells := g.Cells(sc)
	if len(cells) != 4 {
		t.Fatalf("expected 4 addressable cells, got %d: %v", len(cells), cells)
	}
}
