package library

import (
	"context"
	"sync"
)

// Static is an in-memory Library populated from configuration. It also
// serves as the test double for the bridge and pool packages.
type Static struct {
	mu    sync.RWMutex
	games []Installation
}

func NewStatic(games []Installation) *Static {
	cp := make([]Installation, len(games))
	copy(cp, games)
	return &Static{games: cp}
}

// Add registers an installation, replacing any existing entry with the same id.
func (s *Static) Add(g Installation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.games {
		if s.games[i].ID == g.ID {
			s.games[i] = g
			return
		}
	}
	s.games = append(s.games, g)
}

func (s *Static) ByID(_ context.Context, id string) (Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.games {
		if g.ID == id {
			return g, nil
		}
	}
	return Installation{}, ErrNotFound
}

func (s *Static) ByExecutable(_ context.Context, path string) (Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.games {
		if g.Executable == path {
			return g, nil
		}
	}
	return Installation{}, ErrNotFound
}

func (s *Static) List(_ context.Context) ([]Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Installation, len(s.games))
	copy(out, s.games)
	return out, nil
}
