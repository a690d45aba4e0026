package snap

import (
	"math"
	"testing"
)

func TestQuantize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value, gran float64
		half        bool
		want        float64
	}{
		{0.9, 0.25, false, 1.0},
		{1.30, 0.25, true, 1.25},
		{1.13, 0.25, false, 1.25},
		{0.01, 0.25, false, 0.25},
		{0.01, 0.25, true, 0.125},
		{-4, 0.25, false, 0.25},
		{3, 1, false, 3},
		{2.2, 0, false, 2.25}, // invalid granularity falls back to default
	}
	for _, tc := range cases {
		got := Quantize(tc.value, tc.gran, tc.half)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Quantize(%v, %v, %v)=%v, want %v", tc.value, tc.gran, tc.half, got, tc.want)
		}
	}
}

func TestSetting_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	s := NewSetting(0)
	if s.Get() != DefaultGranularity {
		t.Fatalf("expected default granularity, got %v", s.Get())
	}
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := s.Set(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
	if err := s.Set(0.5); err != nil {
		t.Fatalf("Set(0.5): %v", err)
	}
	if got := s.Quantize(1.3, false); got != 1.5 {
		t.Fatalf("Quantize with 0.5 granularity = %v", got)
	}
}
