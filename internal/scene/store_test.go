package scene

import (
	"testing"

	"sova-cli/internal/model"
)

func TestStore_ReplaceIsWholesale(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if s.Current() == nil || s.Version() != 0 {
		t.Fatalf("expected empty scene at version 0")
	}

	first := &model.Scene{Lines: []model.Line{{Frames: []model.Frame{model.DefaultFrame()}}}}
	if v := s.Replace(first); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
	if _, ok := s.Frame(0, 0); !ok {
		t.Fatalf("expected frame (0,0)")
	}

	held := s.Current()
	s.Replace(&model.Scene{})
	if held.LineCount() != 1 {
		t.Fatalf("previous scene value must not change after Replace")
	}
	if s.Current().LineCount() != 0 {
		t.Fatalf("expected replaced scene to be empty")
	}

	s.Replace(nil)
	if s.Current() == nil {
		t.Fatalf("Replace(nil) must leave a non-nil empty scene")
	}
}
