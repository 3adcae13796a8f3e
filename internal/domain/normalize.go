package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMissingID marks an inbound payload without a usable identifier.
var ErrMissingID = errors.New("payload has no identifier")

// Wire timestamps are RFC3339 or a zone-less ISO variant depending on the
// producer. Anything unparseable falls back to arrival time, which is
// consistent with last-arrival-wins reconciliation.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseWireTime(s string, fallback time.Time) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

type vehicleWire struct {
	VehicleID string   `json:"vehicle_id"`
	Timestamp string   `json:"timestamp"`
	Position  Position `json:"position"`
	Speed     float64  `json:"speed"`
	Heading   float64  `json:"heading"`
	Status    string   `json:"status"`
}

// DecodeVehicle normalizes a CAM-equivalent payload.
func DecodeVehicle(raw []byte, now time.Time) (*VehicleState, error) {
	var w vehicleWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode vehicle: %w", err)
	}
	if w.VehicleID == "" {
		return nil, ErrMissingID
	}
	status := VehicleStatus(w.Status)
	if status == "" {
		status = StatusNormal
	}
	return &VehicleState{
		ID:         w.VehicleID,
		Position:   w.Position,
		Speed:      w.Speed,
		Heading:    w.Heading,
		Status:     status,
		Timestamp:  parseWireTime(w.Timestamp, now),
		ReceivedAt: now,
	}, nil
}

// Infrastructure reports use the short lat/lon keys, unlike vehicles.
type infraPositionWire struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type infraWire struct {
	InfrastructureID string            `json:"infrastructure_id"`
	Timestamp        string            `json:"timestamp"`
	Position         infraPositionWire `json:"position"`
	Data             struct {
		TrafficLightState string `json:"traffic_light_state"`
		RemainingTime     int    `json:"remaining_time"`
	} `json:"data"`
}

// DecodeInfrastructure normalizes a V2I payload.
func DecodeInfrastructure(raw []byte, now time.Time) (*InfrastructureState, error) {
	var w infraWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode infrastructure: %w", err)
	}
	if w.InfrastructureID == "" {
		return nil, ErrMissingID
	}
	return &InfrastructureState{
		ID:            w.InfrastructureID,
		Position:      Position{Latitude: w.Position.Lat, Longitude: w.Position.Lon},
		SignalPhase:   SignalPhase(w.Data.TrafficLightState),
		RemainingSecs: w.Data.RemainingTime,
		Timestamp:     parseWireTime(w.Timestamp, now),
		ReceivedAt:    now,
	}, nil
}

type emergencyWire struct {
	EventID   string   `json:"event_id"`
	EventType string   `json:"event_type"`
	Severity  string   `json:"severity"`
	Position  Position `json:"position"`
	Radius    float64  `json:"radius"`
	Duration  float64  `json:"duration"`
	Timestamp string   `json:"timestamp"`
}

// DecodeEmergency normalizes a DENM-equivalent broadcast. The event type is
// the identifying field; an absent event_id is tolerated because the marker
// and expiry bookkeeping assign one at the reconciler.
func DecodeEmergency(raw []byte, now time.Time) (*EmergencyEvent, error) {
	var w emergencyWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode emergency: %w", err)
	}
	if w.EventType == "" {
		return nil, ErrMissingID
	}
	return &EmergencyEvent{
		ID:         w.EventID,
		Type:       w.EventType,
		Severity:   Severity(w.Severity),
		Position:   w.Position,
		RadiusM:    w.Radius,
		Duration:   time.Duration(w.Duration * float64(time.Second)),
		Timestamp:  parseWireTime(w.Timestamp, now),
		ReceivedAt: now,
	}, nil
}

type jobWire struct {
	JobID          string            `json:"job_id"`
	Type           string            `json:"type"`
	Timestamp      string            `json:"timestamp"`
	TargetVehicles []string          `json:"target_vehicles"`
	Parameters     map[string]any    `json:"parameters"`
	Status         string            `json:"status"`
	Responses      []json.RawMessage `json:"responses"`
}

func (w *jobWire) toJob(now time.Time) *Job {
	status := JobStatus(w.Status)
	if status == "" {
		status = JobPending
	}
	return &Job{
		ID:             w.JobID,
		Type:           w.Type,
		Timestamp:      parseWireTime(w.Timestamp, now),
		TargetVehicles: w.TargetVehicles,
		Parameters:     w.Parameters,
		Status:         status,
		ResponseCount:  len(w.Responses),
	}
}

// DecodeJobSnapshot normalizes a bulk job snapshot keyed by job identifier.
// Entries without an identifier are skipped rather than failing the batch.
func DecodeJobSnapshot(raw []byte, now time.Time) ([]*Job, error) {
	var m map[string]jobWire
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode job snapshot: %w", err)
	}
	jobs := make([]*Job, 0, len(m))
	for id, w := range m {
		if w.JobID == "" {
			w.JobID = id
		}
		if w.JobID == "" {
			continue
		}
		jobs = append(jobs, w.toJob(now))
	}
	return jobs, nil
}

type jobResponseWire struct {
	JobID     string `json:"job_id"`
	VehicleID string `json:"vehicle_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DecodeJobResponse normalizes a single job acknowledgment.
func DecodeJobResponse(raw []byte, now time.Time) (*JobResponse, error) {
	var w jobResponseWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	if w.JobID == "" {
		return nil, ErrMissingID
	}
	return &JobResponse{
		JobID:     w.JobID,
		VehicleID: w.VehicleID,
		Status:    w.Status,
		Message:   w.Message,
		Timestamp: parseWireTime(w.Timestamp, now),
	}, nil
}
