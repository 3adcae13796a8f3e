// Package httpapi exposes the dashboard REST surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"car2x-dashboard/internal/domain"
	"car2x-dashboard/internal/jobs"
	"car2x-dashboard/internal/store"
	"car2x-dashboard/internal/transport/ws"
)

type Server struct {
	store      *store.EntityStore
	ring       *store.AlertRing
	correlator *jobs.Correlator
	hub        *ws.Hub
	counts     func() domain.Counts
}

func NewServer(st *store.EntityStore, ring *store.AlertRing, correlator *jobs.Correlator, hub *ws.Hub, counts func() domain.Counts) *Server {
	return &Server{store: st, ring: ring, correlator: correlator, hub: hub, counts: counts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/vehicles", s.handleVehicles)
	r.Get("/api/infrastructure", s.handleInfrastructure)
	r.Get("/api/emergencies", s.handleEmergencies)
	r.Get("/api/jobs", s.handleJobs)
	r.Post("/api/jobs", s.handleCreateJob)
	r.Get("/api/stats", s.handleStats)
	r.Get("/ws", s.hub.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]domain.VehicleState)
	for _, v := range s.store.Vehicles() {
		out[v.ID] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInfrastructure(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]domain.InfrastructureState)
	for _, i := range s.store.InfrastructureItems() {
		out[i.ID] = i
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEmergencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ring.Snapshot())
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]domain.Job)
	for _, j := range s.store.Jobs() {
		out[j.ID] = j
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateJob validates the request synchronously; invalid input is the
// one error class surfaced to the operator.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job request body")
		return
	}
	jobID, err := s.correlator.CreateJob(r.Context(), req)
	if err != nil {
		if errors.Is(err, jobs.ErrNoType) || errors.Is(err, jobs.ErrNoTargets) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "job creation failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "created"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.counts())
}
