// Package store holds the session-lifetime entity state. One record per
// identifier per kind; upserts are last-arrival-wins. Every store is
// mutex-guarded so the reconciler and renderers can run on separate
// goroutines without observing partial updates.
package store

import (
	"sort"
	"sync"

	"car2x-dashboard/internal/domain"
)

type EntityStore struct {
	mu             sync.RWMutex
	vehicles       map[string]*domain.VehicleState
	infrastructure map[string]*domain.InfrastructureState
	jobs           map[string]*domain.Job
}

func NewEntityStore() *EntityStore {
	return &EntityStore{
		vehicles:       make(map[string]*domain.VehicleState),
		infrastructure: make(map[string]*domain.InfrastructureState),
		jobs:           make(map[string]*domain.Job),
	}
}

// UpsertVehicle stores v and reports whether the visible state changed.
// A re-delivered identical report is a no-op.
func (s *EntityStore) UpsertVehicle(v *domain.VehicleState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.vehicles[v.ID]; ok && prev.Same(v) {
		return false
	}
	s.vehicles[v.ID] = v
	return true
}

func (s *EntityStore) Vehicle(id string) (domain.VehicleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return domain.VehicleState{}, false
	}
	return *v, true
}

func (s *EntityStore) Vehicles() []domain.VehicleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VehicleState, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *EntityStore) UpsertInfrastructure(i *domain.InfrastructureState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.infrastructure[i.ID]; ok && prev.Same(i) {
		return false
	}
	s.infrastructure[i.ID] = i
	return true
}

func (s *EntityStore) Infrastructure(id string) (domain.InfrastructureState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.infrastructure[id]
	if !ok {
		return domain.InfrastructureState{}, false
	}
	return *i, true
}

func (s *EntityStore) InfrastructureItems() []domain.InfrastructureState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InfrastructureState, 0, len(s.infrastructure))
	for _, i := range s.infrastructure {
		out = append(out, *i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpsertJob merges j into the store. Status, targets and parameters follow
// the incoming record (server snapshots are authoritative), but the response
// counter never moves backwards: a stale snapshot cannot erase responses the
// dashboard has already correlated.
func (s *EntityStore) UpsertJob(j *domain.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.jobs[j.ID]
	if ok {
		merged := *j
		if prev.ResponseCount > merged.ResponseCount {
			merged.ResponseCount = prev.ResponseCount
		}
		if prev.Status == merged.Status &&
			prev.ResponseCount == merged.ResponseCount &&
			prev.Type == merged.Type &&
			prev.Timestamp.Equal(merged.Timestamp) {
			return false
		}
		s.jobs[j.ID] = &merged
		return true
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return true
}

// IncrementJobResponses bumps the counter for a correlated response and
// returns the new count. ok is false when no such job exists.
func (s *EntityStore) IncrementJobResponses(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return 0, false
	}
	j.ResponseCount++
	return j.ResponseCount, true
}

func (s *EntityStore) Job(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}

func (s *EntityStore) Jobs() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *EntityStore) Counts() (vehicles, infrastructure, jobs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles), len(s.infrastructure), len(s.jobs)
}
