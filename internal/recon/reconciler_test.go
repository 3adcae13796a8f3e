package recon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/jobs"
	"car2x-dashboard/internal/recon"
	"car2x-dashboard/internal/store"
)

type nopPublisher struct{}

func (nopPublisher) PublishJobAssign(ctx context.Context, job *domain.Job) error { return nil }

type recordingNotifier struct {
	mu      sync.Mutex
	changes []domain.Change
}

func (n *recordingNotifier) EntityChanged(ch domain.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, ch)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.changes)
}

func (n *recordingNotifier) last() domain.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.changes[len(n.changes)-1]
}

func newReconciler(t *testing.T) (*recon.Reconciler, *store.EntityStore, *store.AlertRing, *recordingNotifier) {
	t.Helper()
	st := store.NewEntityStore()
	ring := store.NewAlertRing(store.DefaultAlertCapacity)
	notify := &recordingNotifier{}
	correlator := jobs.NewCorrelator(st, nopPublisher{}, notify)
	return recon.New(st, ring, correlator, notify, 64), st, ring, notify
}

const camV001 = `{
	"vehicle_id": "V001",
	"timestamp": "2025-06-01T12:00:00Z",
	"position": {"latitude": 48.1351, "longitude": 11.5820},
	"speed": 65.5,
	"heading": 45,
	"status": "normal"
}`

func TestApplyVehicleUpdateIdempotent(t *testing.T) {
	r, st, _, notify := newReconciler(t)

	r.ApplyVehicleUpdate([]byte(camV001))
	r.ApplyVehicleUpdate([]byte(camV001))

	assert.Equal(t, 1, notify.count(), "identical re-delivery must not rebuild")
	v, ok := st.Vehicle("V001")
	require.True(t, ok)
	assert.Equal(t, 65.5, v.Speed)
	assert.Len(t, st.Vehicles(), 1)
}

func TestApplyVehicleUpdateLastArrivalWins(t *testing.T) {
	r, st, _, notify := newReconciler(t)

	a := `{"vehicle_id": "V001", "position": {"latitude": 48.10, "longitude": 11.50}, "speed": 50}`
	b := `{"vehicle_id": "V001", "position": {"latitude": 48.20, "longitude": 11.60}, "speed": 55}`

	r.ApplyVehicleUpdate([]byte(a))
	r.ApplyVehicleUpdate([]byte(b))

	v, _ := st.Vehicle("V001")
	assert.Equal(t, 48.20, v.Position.Latitude)
	assert.Equal(t, 55.0, v.Speed)
	assert.Equal(t, 2, notify.count())
}

func TestApplyVehicleUpdateMalformedIsSilentNoop(t *testing.T) {
	r, st, _, notify := newReconciler(t)

	r.ApplyVehicleUpdate([]byte(`{"speed": 10}`)) // no identifier
	r.ApplyVehicleUpdate([]byte(`{broken`))

	assert.Empty(t, st.Vehicles())
	assert.Equal(t, 0, notify.count())
}

func TestApplyInfrastructureUpdate(t *testing.T) {
	r, st, _, notify := newReconciler(t)

	raw := `{
		"infrastructure_id": "TL001",
		"position": {"lat": 48.1351, "lon": 11.5820},
		"data": {"traffic_light_state": "red", "remaining_time": 25}
	}`
	r.ApplyInfrastructureUpdate([]byte(raw))
	r.ApplyInfrastructureUpdate([]byte(raw))

	assert.Equal(t, 1, notify.count())
	i, ok := st.Infrastructure("TL001")
	require.True(t, ok)
	assert.Equal(t, domain.SignalRed, i.SignalPhase)
}

func TestApplyEmergencyEventDeduplicatedByID(t *testing.T) {
	r, _, ring, notify := newReconciler(t)

	raw := `{
		"event_id": "e1",
		"event_type": "accident",
		"severity": "high",
		"duration": 300,
		"position": {"latitude": 48.14, "longitude": 11.58}
	}`
	// Same broadcast arriving on both channels.
	r.ApplyEmergencyEvent([]byte(raw))
	r.ApplyEmergencyEvent([]byte(raw))

	assert.Equal(t, 1, ring.Len())
	assert.Equal(t, 1, notify.count())

	ch := notify.last()
	assert.Equal(t, domain.KindEmergency, ch.Kind)
	require.NotNil(t, ch.Emergency)
	assert.Equal(t, 300*time.Second, ch.Emergency.Duration)
	assert.Len(t, ch.Alerts, 1)
}

func TestApplyEmergencyEventAssignsMissingID(t *testing.T) {
	r, _, ring, notify := newReconciler(t)

	r.ApplyEmergencyEvent([]byte(`{"event_type": "hazardous_weather", "severity": "low", "duration": 60}`))

	require.Equal(t, 1, ring.Len())
	assert.NotEmpty(t, notify.last().ID)
}

func TestApplyJobSnapshotAndResponse(t *testing.T) {
	r, st, _, notify := newReconciler(t)

	snapshot := `{"j1": {"job_id": "j1", "type": "diagnostic", "target_vehicles": ["V001"], "status": "pending"}}`
	r.ApplyJobSnapshot([]byte(snapshot))

	job, ok := st.Job("j1")
	require.True(t, ok)
	assert.Equal(t, domain.JobPending, job.Status)

	r.ApplyJobResponse([]byte(`{"job_id": "j1", "vehicle_id": "V001", "status": "acknowledged"}`))
	job, _ = st.Job("j1")
	assert.Equal(t, 1, job.ResponseCount)

	// A response for an unknown identifier leaves all counts unchanged.
	before := notify.count()
	r.ApplyJobResponse([]byte(`{"job_id": "ghost"}`))
	job, _ = st.Job("j1")
	assert.Equal(t, 1, job.ResponseCount)
	assert.Equal(t, before, notify.count())
}

func TestSubmitAndRunAppliesQueuedEvents(t *testing.T) {
	r, st, _, _ := newReconciler(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Submit(recon.Event{Kind: recon.EventVehicle, Channel: "push", Payload: []byte(camV001)})

	require.Eventually(t, func() bool {
		_, ok := st.Vehicle("V001")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestRunAppliesSameIDInDequeueOrder(t *testing.T) {
	r, st, _, _ := newReconciler(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Push and poll race for the same identifier; dequeue order decides.
	r.Submit(recon.Event{Kind: recon.EventVehicle, Channel: "push", Payload: []byte(`{"vehicle_id": "V001", "speed": 10}`)})
	r.Submit(recon.Event{Kind: recon.EventVehicle, Channel: "poll", Payload: []byte(`{"vehicle_id": "V001", "speed": 20}`)})

	require.Eventually(t, func() bool {
		v, ok := st.Vehicle("V001")
		return ok && v.Speed == 20
	}, time.Second, 5*time.Millisecond)
}
