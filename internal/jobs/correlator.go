// Package jobs implements remote-management job creation and response
// correlation.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/log"
	"car2x-dashboard/internal/metrics"
	"car2x-dashboard/internal/store"
)

var (
	ErrNoType    = errors.New("job type is required")
	ErrNoTargets = errors.New("job needs at least one target vehicle")
)

// Publisher hands a newly created job to the transport for distribution.
type Publisher interface {
	PublishJobAssign(ctx context.Context, job *domain.Job) error
}

// Notifier receives change notifications for re-rendering.
type Notifier interface {
	EntityChanged(domain.Change)
}

// CreateRequest is a fully-formed job-creation request.
type CreateRequest struct {
	Type           string         `json:"type"`
	TargetVehicles []string       `json:"target_vehicles"`
	Parameters     map[string]any `json:"parameters"`
}

type Correlator struct {
	store  *store.EntityStore
	pub    Publisher
	notify Notifier
	clock  func() time.Time
	log    zerolog.Logger
}

func NewCorrelator(st *store.EntityStore, pub Publisher, notify Notifier) *Correlator {
	return &Correlator{
		store:  st,
		pub:    pub,
		notify: notify,
		clock:  time.Now,
		log:    log.WithComponent("jobs"),
	}
}

// CreateJob registers the job optimistically: the pending card is visible
// before the backend has acknowledged anything. The server-confirmed record
// later reconciles with this entry by identifier.
func (c *Correlator) CreateJob(ctx context.Context, req CreateRequest) (string, error) {
	if req.Type == "" {
		return "", ErrNoType
	}
	if len(req.TargetVehicles) == 0 {
		return "", ErrNoTargets
	}

	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}

	job := &domain.Job{
		ID:             uuid.NewString()[:8],
		Type:           req.Type,
		Timestamp:      c.clock(),
		TargetVehicles: req.TargetVehicles,
		Parameters:     params,
		Status:         domain.JobPending,
	}

	c.store.UpsertJob(job)
	c.notify.EntityChanged(domain.Change{Kind: domain.KindJob, ID: job.ID, Job: job})

	if err := c.pub.PublishJobAssign(ctx, job); err != nil {
		// The optimistic card stays; the poll channel reconciles once the
		// backend learns about the job through another path.
		c.log.Error().Err(err).Str("job_id", job.ID).Msg("job assign publish failed")
	}

	return job.ID, nil
}

// ApplySnapshot merges a server-delivered bulk snapshot. One notification
// per job whose visible state actually changed.
func (c *Correlator) ApplySnapshot(jobs []*domain.Job) {
	for _, j := range jobs {
		if !c.store.UpsertJob(j) {
			continue
		}
		merged, _ := c.store.Job(j.ID)
		c.notify.EntityChanged(domain.Change{Kind: domain.KindJob, ID: j.ID, Job: &merged})
	}
}

// ApplyResponse correlates one acknowledgment to its job card. Responses for
// unknown identifiers are dropped; the next job snapshot is authoritative.
func (c *Correlator) ApplyResponse(resp *domain.JobResponse) {
	count, ok := c.store.IncrementJobResponses(resp.JobID)
	if !ok {
		metrics.EventsDropped.WithLabelValues("orphan_response").Inc()
		c.log.Warn().Str("job_id", resp.JobID).Str("vehicle_id", resp.VehicleID).
			Msg("dropping response for unknown job")
		return
	}
	job, _ := c.store.Job(resp.JobID)
	c.log.Debug().Str("job_id", resp.JobID).Int("responses", count).Msg("job response correlated")
	c.notify.EntityChanged(domain.Change{Kind: domain.KindJob, ID: resp.JobID, Job: &job})
}
