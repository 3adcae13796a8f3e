package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/jobs"
	"car2x-dashboard/internal/store"
	"car2x-dashboard/internal/transport/httpapi"
	"car2x-dashboard/internal/transport/ws"
)

type nopPublisher struct{}

func (nopPublisher) PublishJobAssign(ctx context.Context, job *domain.Job) error { return nil }

type nopNotifier struct{}

func (nopNotifier) EntityChanged(domain.Change) {}

func newTestServer(t *testing.T) (*httptest.Server, *store.EntityStore, *store.AlertRing) {
	t.Helper()
	st := store.NewEntityStore()
	ring := store.NewAlertRing(store.DefaultAlertCapacity)
	correlator := jobs.NewCorrelator(st, nopPublisher{}, nopNotifier{})
	hub := ws.NewHub(nil)
	counts := func() domain.Counts {
		vehicles, infrastructure, jobCount := st.Counts()
		return domain.Counts{Vehicles: vehicles, Infrastructure: infrastructure, Jobs: jobCount, Alerts: ring.Len()}
	}
	api := httpapi.NewServer(st, ring, correlator, hub, counts)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv, st, ring
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVehiclesKeyedByID(t *testing.T) {
	srv, st, _ := newTestServer(t)
	st.UpsertVehicle(&domain.VehicleState{ID: "V001", Speed: 50})
	st.UpsertVehicle(&domain.VehicleState{ID: "V002", Speed: 60})

	resp, err := http.Get(srv.URL + "/api/vehicles")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]domain.VehicleState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.Equal(t, 50.0, out["V001"].Speed)
}

func TestEmergenciesNewestFirst(t *testing.T) {
	srv, _, ring := newTestServer(t)
	ring.Push(domain.EmergencyEvent{ID: "e1", Type: "accident"})
	ring.Push(domain.EmergencyEvent{ID: "e2", Type: "hazard"})

	resp, err := http.Get(srv.URL + "/api/emergencies")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []domain.EmergencyEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.Equal(t, "e2", out[0].ID)
}

func TestCreateJob(t *testing.T) {
	srv, st, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"type": "diagnostic", "target_vehicles": ["V001"], "parameters": {"sensors": ["engine"]}}`)
	resp, err := http.Post(srv.URL+"/api/jobs", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out["job_id"], 8)

	job, ok := st.Job(out["job_id"])
	require.True(t, ok)
	assert.Equal(t, domain.JobPending, job.Status)
}

func TestCreateJobRejectsInvalidInput(t *testing.T) {
	srv, st, _ := newTestServer(t)

	cases := []string{
		`{"target_vehicles": ["V001"]}`,             // no type
		`{"type": "diagnostic"}`,                    // no targets
		`{"type": "diagnostic", "target_vehicles"`, // malformed body
	}
	for _, c := range cases {
		resp, err := http.Post(srv.URL+"/api/jobs", "application/json", bytes.NewBufferString(c))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, c)
	}
	assert.Empty(t, st.Jobs())
}

func TestStats(t *testing.T) {
	srv, st, ring := newTestServer(t)
	st.UpsertVehicle(&domain.VehicleState{ID: "V001"})
	ring.Push(domain.EmergencyEvent{ID: "e1", Type: "accident"})

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out domain.Counts
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Vehicles)
	assert.Equal(t, 1, out.Alerts)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
