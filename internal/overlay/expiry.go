package overlay

import (
	"sync"
	"time"
)

// Scheduler arms one-shot expiry timers for transient emergency markers.
// Timers are fire-and-forget: the handle is retained but there is no
// cancellation path. The duration is a safety-broadcast validity window, so
// a marker keeps counting down even when its alert has already left the
// visible list.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	expire func(id string)
}

func NewScheduler(expire func(id string)) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		expire: expire,
	}
}

// Schedule arms the timer for id. Re-scheduling an already-armed id is a
// no-op so duplicate deliveries cannot shorten or extend a window.
func (s *Scheduler) Schedule(id string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[id]; ok {
		return
	}
	s.timers[id] = time.AfterFunc(d, func() {
		s.expire(id)
	})
}

// Armed reports whether a timer was ever armed for id.
func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}
