// Package overlay keeps map markers and list cards in lockstep with the
// entity store: exactly one marker per known vehicle/infrastructure
// identifier, one transient marker per emergency event until expiry, and one
// card per entity.
package overlay

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/metrics"
)

type EventType string

const (
	EventMarkerCreated  EventType = "marker_created"
	EventMarkerReplaced EventType = "marker_replaced"
	EventMarkerExpired  EventType = "marker_expired"
	EventCardAdded      EventType = "card_added"
	EventCardUpdated    EventType = "card_updated"
)

// Marker is a map overlay element. Markers are immutable: an update destroys
// the old marker and creates a replacement, because the rendering primitive
// cannot patch one in place. Generation increases on every replacement.
type Marker struct {
	Kind       domain.Kind     `json:"kind"`
	ID         string          `json:"id"`
	Position   domain.Position `json:"position"`
	Category   Category        `json:"category"`
	Generation uint64          `json:"generation"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Card is a list panel entry. Unlike markers, cards mutate in place so the
// list does not reorder on every update.
type Card struct {
	Kind          domain.Kind `json:"kind"`
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Category      Category    `json:"category"`
	EmergencyFlag bool        `json:"emergency_flag"`
	ResponseCount int         `json:"response_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Event is the rendering notification pushed to outbound sinks.
type Event struct {
	Type     EventType               `json:"type"`
	Kind     domain.Kind             `json:"kind"`
	ID       string                  `json:"id"`
	Category Category                `json:"category,omitempty"`
	Marker   *Marker                 `json:"marker,omitempty"`
	Card     *Card                   `json:"card,omitempty"`
	Alerts   []domain.EmergencyEvent `json:"alerts,omitempty"`
	Counts   domain.Counts           `json:"counts"`
}

// Sink consumes rendering notifications.
type Sink interface {
	Publish(Event)
}

type Manager struct {
	mu         sync.Mutex
	markers    map[domain.Kind]map[string]*Marker
	cards      map[domain.Kind]map[string]*Card
	cardOrder  map[domain.Kind][]string
	alerts     []domain.EmergencyEvent
	generation uint64
	sched      *Scheduler
	sink       Sink
	counts     func() domain.Counts
	clock      func() time.Time
	log        zerolog.Logger
}

func NewManager(sink Sink, counts func() domain.Counts) *Manager {
	m := &Manager{
		markers: map[domain.Kind]map[string]*Marker{
			domain.KindVehicle:        {},
			domain.KindInfrastructure: {},
			domain.KindEmergency:      {},
		},
		cards: map[domain.Kind]map[string]*Card{
			domain.KindVehicle:        {},
			domain.KindInfrastructure: {},
			domain.KindJob:            {},
		},
		cardOrder: map[domain.Kind][]string{},
		sink:      sink,
		counts:    counts,
		clock:     time.Now,
		log:       log.WithComponent("overlay"),
	}
	m.sched = NewScheduler(m.expireEmergency)
	return m
}

// Scheduler exposes the expiry scheduler, mainly for tests.
func (m *Manager) Scheduler() *Scheduler { return m.sched }

// markerContainer returns the marker table for kind. A kind without a
// registered container is a fatal precondition violation.
func (m *Manager) markerContainer(kind domain.Kind) map[string]*Marker {
	c, ok := m.markers[kind]
	if !ok {
		panic("overlay: no marker container for kind " + string(kind))
	}
	return c
}

func (m *Manager) cardContainer(kind domain.Kind) map[string]*Card {
	c, ok := m.cards[kind]
	if !ok {
		panic("overlay: no card container for kind " + string(kind))
	}
	return c
}

// EntityChanged re-renders exactly the affected entity's marker and card.
func (m *Manager) EntityChanged(ch domain.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ch.Kind {
	case domain.KindVehicle:
		cat := CategoryFor(ch)
		evType := m.replaceMarker(ch.Kind, ch.ID, ch.Vehicle.Position, cat)
		card := m.upsertCard(ch.Kind, ch.ID, ch.ID, cat, 0)
		m.emit(Event{Type: evType, Kind: ch.Kind, ID: ch.ID, Category: cat,
			Marker: m.markers[ch.Kind][ch.ID], Card: card})

	case domain.KindInfrastructure:
		cat := CategoryFor(ch)
		evType := m.replaceMarker(ch.Kind, ch.ID, ch.Infrastructure.Position, cat)
		card := m.upsertCard(ch.Kind, ch.ID, ch.ID, cat, 0)
		m.emit(Event{Type: evType, Kind: ch.Kind, ID: ch.ID, Category: cat,
			Marker: m.markers[ch.Kind][ch.ID], Card: card})

	case domain.KindEmergency:
		m.applyEmergency(ch)

	case domain.KindJob:
		cat := CategoryFor(ch)
		evType := EventCardUpdated
		if _, ok := m.cardContainer(ch.Kind)[ch.ID]; !ok {
			evType = EventCardAdded
		}
		card := m.upsertCard(ch.Kind, ch.ID, ch.Job.Type, cat, ch.Job.ResponseCount)
		m.emit(Event{Type: evType, Kind: ch.Kind, ID: ch.ID, Category: cat, Card: card})

	default:
		m.log.Error().Str("kind", string(ch.Kind)).Msg("change for unknown entity kind")
	}
}

// applyEmergency creates the transient marker, arms its expiry timer and
// mirrors the alert window. The marker outlives list eviction and the list
// entry can outlive the marker; the two lifecycles never touch.
func (m *Manager) applyEmergency(ch domain.Change) {
	cat := CategoryFor(ch)
	container := m.markerContainer(domain.KindEmergency)
	evType := EventMarkerReplaced
	if _, ok := container[ch.ID]; !ok {
		evType = EventMarkerCreated
		m.generation++
		container[ch.ID] = &Marker{
			Kind:       domain.KindEmergency,
			ID:         ch.ID,
			Position:   ch.Emergency.Position,
			Category:   cat,
			Generation: m.generation,
			CreatedAt:  m.clock(),
		}
		metrics.MarkersActive.WithLabelValues(string(domain.KindEmergency)).Set(float64(len(container)))
		m.sched.Schedule(ch.ID, ch.Emergency.Duration)
	}
	m.alerts = ch.Alerts
	m.emit(Event{Type: evType, Kind: domain.KindEmergency, ID: ch.ID, Category: cat,
		Marker: container[ch.ID], Alerts: ch.Alerts})
}

// expireEmergency is invoked by the scheduler when a validity window ends.
func (m *Manager) expireEmergency(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	container := m.markerContainer(domain.KindEmergency)
	if _, ok := container[id]; !ok {
		return
	}
	delete(container, id)
	metrics.MarkersActive.WithLabelValues(string(domain.KindEmergency)).Set(float64(len(container)))
	m.log.Debug().Str("event_id", id).Msg("emergency marker expired")
	m.emit(Event{Type: EventMarkerExpired, Kind: domain.KindEmergency, ID: id})
}

// replaceMarker implements destroy-then-recreate for persistent markers and
// reports whether this was a creation or a replacement.
func (m *Manager) replaceMarker(kind domain.Kind, id string, pos domain.Position, cat Category) EventType {
	container := m.markerContainer(kind)
	evType := EventMarkerCreated
	if _, ok := container[id]; ok {
		delete(container, id)
		evType = EventMarkerReplaced
	}
	m.generation++
	container[id] = &Marker{
		Kind:       kind,
		ID:         id,
		Position:   pos,
		Category:   cat,
		Generation: m.generation,
		CreatedAt:  m.clock(),
	}
	metrics.MarkersActive.WithLabelValues(string(kind)).Set(float64(len(container)))
	return evType
}

// upsertCard updates a card in place, appending only when absent.
func (m *Manager) upsertCard(kind domain.Kind, id, title string, cat Category, responses int) *Card {
	container := m.cardContainer(kind)
	now := m.clock()
	if card, ok := container[id]; ok {
		card.Title = title
		card.Category = cat
		card.EmergencyFlag = cat == CategoryVehicleEmergency
		card.ResponseCount = responses
		card.UpdatedAt = now
		return card
	}
	card := &Card{
		Kind:          kind,
		ID:            id,
		Title:         title,
		Category:      cat,
		EmergencyFlag: cat == CategoryVehicleEmergency,
		ResponseCount: responses,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	container[id] = card
	m.cardOrder[kind] = append(m.cardOrder[kind], id)
	return card
}

func (m *Manager) emit(ev Event) {
	if m.counts != nil {
		ev.Counts = m.counts()
	}
	if m.sink != nil {
		m.sink.Publish(ev)
	}
}

// Marker returns a copy of the live marker for kind/id.
func (m *Manager) Marker(kind domain.Kind, id string) (Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markerContainer(kind)[id]
	if !ok {
		return Marker{}, false
	}
	return *mk, true
}

// MarkerCount reports how many markers are live for kind.
func (m *Manager) MarkerCount(kind domain.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markerContainer(kind))
}

// Card returns a copy of the card for kind/id.
func (m *Manager) Card(kind domain.Kind, id string) (Card, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cardContainer(kind)[id]
	if !ok {
		return Card{}, false
	}
	return *c, true
}

// Cards returns the card list for kind in append order.
func (m *Manager) Cards(kind domain.Kind) []Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	container := m.cardContainer(kind)
	out := make([]Card, 0, len(container))
	for _, id := range m.cardOrder[kind] {
		if c, ok := container[id]; ok {
			out = append(out, *c)
		}
	}
	return out
}

// Alerts returns the mirrored alert window, newest-first.
func (m *Manager) Alerts() []domain.EmergencyEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EmergencyEvent, len(m.alerts))
	copy(out, m.alerts)
	return out
}
