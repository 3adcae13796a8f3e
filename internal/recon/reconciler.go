// Package recon merges update events from the push and poll channels into
// one consistent view per entity. Both channels feed the same intake, so a
// logical update produces at most one rebuild regardless of which channel
// delivered it.
package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/jobs"
	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/metrics"
	"car2x-dashboard/internal/store"
)

type EventKind string

const (
	EventVehicle        EventKind = "vehicle"
	EventInfrastructure EventKind = "infrastructure"
	EventEmergency      EventKind = "emergency"
	EventJobSnapshot    EventKind = "job_snapshot"
	EventJobResponse    EventKind = "job_response"
)

// Event is one raw inbound payload tagged with its kind and origin channel.
type Event struct {
	Kind    EventKind
	Channel string // "push" or "poll"
	Payload []byte
}

// Notifier receives the single "entity changed" notification per applied
// update.
type Notifier interface {
	EntityChanged(domain.Change)
}

type Reconciler struct {
	store      *store.EntityStore
	ring       *store.AlertRing
	correlator *jobs.Correlator
	notify     Notifier
	events     chan Event
	seenEvents map[string]struct{} // emergency event ids already applied
	clock      func() time.Time
	log        zerolog.Logger
}

func New(st *store.EntityStore, ring *store.AlertRing, correlator *jobs.Correlator, notify Notifier, queueSize int) *Reconciler {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Reconciler{
		store:      st,
		ring:       ring,
		correlator: correlator,
		notify:     notify,
		events:     make(chan Event, queueSize),
		seenEvents: make(map[string]struct{}),
		clock:      time.Now,
		log:        log.WithComponent("reconciler"),
	}
}

// Submit enqueues an event without blocking the transport. A full queue
// drops the event; the poll channel re-delivers authoritative state on the
// next interval.
func (r *Reconciler) Submit(ev Event) {
	metrics.EventsReceived.WithLabelValues(ev.Channel, string(ev.Kind)).Inc()
	select {
	case r.events <- ev:
	default:
		metrics.EventsDropped.WithLabelValues("queue_full").Inc()
	}
}

// Run drains the intake until ctx is cancelled. All upserts happen on this
// goroutine, so updates to the same identifier apply in dequeue order.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.apply(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) apply(ev Event) {
	switch ev.Kind {
	case EventVehicle:
		r.ApplyVehicleUpdate(ev.Payload)
	case EventInfrastructure:
		r.ApplyInfrastructureUpdate(ev.Payload)
	case EventEmergency:
		r.ApplyEmergencyEvent(ev.Payload)
	case EventJobSnapshot:
		r.ApplyJobSnapshot(ev.Payload)
	case EventJobResponse:
		r.ApplyJobResponse(ev.Payload)
	default:
		metrics.EventsDropped.WithLabelValues("unknown_kind").Inc()
	}
}

func (r *Reconciler) reject(kind EventKind, err error) {
	metrics.EventsDropped.WithLabelValues("malformed").Inc()
	r.log.Debug().Err(err).Str("kind", string(kind)).Msg("dropping malformed payload")
}

// ApplyVehicleUpdate upserts one CAM-equivalent report. Re-applying an
// identical payload leaves the visible state untouched and emits nothing.
func (r *Reconciler) ApplyVehicleUpdate(raw []byte) {
	v, err := domain.DecodeVehicle(raw, r.clock())
	if err != nil {
		r.reject(EventVehicle, err)
		return
	}
	if !r.store.UpsertVehicle(v) {
		return
	}
	r.notify.EntityChanged(domain.Change{Kind: domain.KindVehicle, ID: v.ID, Vehicle: v})
}

// ApplyInfrastructureUpdate upserts one roadside report.
func (r *Reconciler) ApplyInfrastructureUpdate(raw []byte) {
	i, err := domain.DecodeInfrastructure(raw, r.clock())
	if err != nil {
		r.reject(EventInfrastructure, err)
		return
	}
	if !r.store.UpsertInfrastructure(i) {
		return
	}
	r.notify.EntityChanged(domain.Change{Kind: domain.KindInfrastructure, ID: i.ID, Infrastructure: i})
}

// ApplyEmergencyEvent appends one broadcast to the alert window. Events are
// deduplicated by identifier so a broadcast seen on both channels yields one
// alert entry, one marker and one expiry timer.
func (r *Reconciler) ApplyEmergencyEvent(raw []byte) {
	ev, err := domain.DecodeEmergency(raw, r.clock())
	if err != nil {
		r.reject(EventEmergency, err)
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()[:8]
	}
	if _, dup := r.seenEvents[ev.ID]; dup {
		metrics.EventsDropped.WithLabelValues("duplicate").Inc()
		return
	}
	r.seenEvents[ev.ID] = struct{}{}

	if _, evicted := r.ring.Push(*ev); evicted {
		metrics.AlertsEvicted.Inc()
	}
	r.notify.EntityChanged(domain.Change{
		Kind:      domain.KindEmergency,
		ID:        ev.ID,
		Emergency: ev,
		Alerts:    r.ring.Snapshot(),
	})
}

// ApplyJobSnapshot merges a bulk job snapshot from either channel.
func (r *Reconciler) ApplyJobSnapshot(raw []byte) {
	snapshot, err := domain.DecodeJobSnapshot(raw, r.clock())
	if err != nil {
		r.reject(EventJobSnapshot, err)
		return
	}
	r.correlator.ApplySnapshot(snapshot)
}

// ApplyJobResponse correlates one acknowledgment payload.
func (r *Reconciler) ApplyJobResponse(raw []byte) {
	resp, err := domain.DecodeJobResponse(raw, r.clock())
	if err != nil {
		r.reject(EventJobResponse, err)
		return
	}
	r.correlator.ApplyResponse(resp)
}
