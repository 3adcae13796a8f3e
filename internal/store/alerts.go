package store

import (
	"sync"

	"car2x-dashboard/internal/domain"
)

// DefaultAlertCapacity bounds the visible emergency history.
const DefaultAlertCapacity = 10

// AlertRing is the bounded, newest-first emergency list. Eviction here is
// independent of marker expiry: an alert can leave the list while its map
// marker is still counting down, and vice versa.
type AlertRing struct {
	mu       sync.RWMutex
	capacity int
	events   []domain.EmergencyEvent
}

func NewAlertRing(capacity int) *AlertRing {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}
	return &AlertRing{capacity: capacity}
}

// Push prepends ev and returns the evicted oldest entry, if any.
func (r *AlertRing) Push(ev domain.EmergencyEvent) (domain.EmergencyEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append([]domain.EmergencyEvent{ev}, r.events...)
	if len(r.events) > r.capacity {
		evicted := r.events[len(r.events)-1]
		r.events = r.events[:r.capacity]
		return evicted, true
	}
	return domain.EmergencyEvent{}, false
}

// Snapshot returns the current window, newest-first.
func (r *AlertRing) Snapshot() []domain.EmergencyEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EmergencyEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *AlertRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
