// Package snap holds the duration snap granularity and the quantizer every duration edit
// goes through.
package snap

import (
	"fmt"
	"math"
	"sync"
)

// DefaultGranularity is a sixteenth note at four beats per bar.
const DefaultGranularity = 0.25

// Quantize rounds value to the nearest multiple of granularity, or of half the granularity
// when half is set. The result is never smaller than one step.
func Quantize(value, granularity float64, half bool) float64 {
	step := granularity
	if !(step > 0) || math.IsInf(step, 0) {
		step = DefaultGranularity
	}
	if half {
		step /= 2
	}
	return math.Max(step, math.Round(value/step)*step)
}

// Setting is the user-adjustable granularity, shared by every editing component.
type Setting struct {
	mu sync.RWMutex
	v  float64
}

func NewSetting(v float64) *Setting {
	s := &Setting{v: DefaultGranularity}
	_ = s.Set(v)
	return s
}

func (s *Setting) Get() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *Setting) Set(v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("snap granularity must be a positive number of beats, got %v", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
	return nil
}

// Quantize applies the current granularity.
func (s *Setting) Quantize(value float64, half bool) float64 {
	return Quantize(value, s.Get(), half)
}
