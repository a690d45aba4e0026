// Package scene holds the client's replica of the server scene.
//
// The replica is read-only from the client's point of view: it is only ever replaced
// wholesale when the server pushes a snapshot. Callers get the scene pointer back and must
// not mutate it.
package scene

import (
	"sync"

	"sova-cli/internal/model"
)

type Store struct {
	mu      sync.RWMutex
	current *model.Scene
	version uint64
}

func NewStore() *Store {
	return &Store{current: &model.Scene{}}
}

// Replace swaps in a new scene and returns the new version number.
func (s *Store) Replace(sc *model.Scene) uint64 {
	if sc == nil {
		sc = &model.Scene{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sc
	s.version++
	return s.version
}

// Current returns the scene as of the last Replace. Never nil.
func (s *Store) Current() *model.Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version increments on every Replace; 0 means no snapshot has arrived yet.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Frame(line, frame int) (model.Frame, bool) {
	return s.Current().Frame(line, frame)
}
