package engine

import (
	"sync"
	"time"
)

// Scheduler keeps at most one armed timer per game: either the continuation
// that runs the next step or the expiry of a pending decision. Re-arming
// replaces whatever was armed before, so a game can never be stepped by two
// timers at once.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Arm schedules fn after d, replacing any timer the game already had.
func (s *Scheduler) Arm(gameID string, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[gameID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		// A replacement may have been armed while we fired
		if s.timers[gameID] == t {
			delete(s.timers, gameID)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[gameID] = t
}

// Cancel drops the game's armed timer, if any. A callback that already
// started keeps running; the engine's per-game lock serializes it.
func (s *Scheduler) Cancel(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[gameID]; ok {
		t.Stop()
		delete(s.timers, gameID)
	}
}

// Shutdown stops every timer and refuses new ones.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
