package domain

import "time"

// Kind identifies the closed set of entity kinds tracked by the dashboard.
type Kind string

const (
	KindVehicle        Kind = "vehicle"
	KindInfrastructure Kind = "infrastructure"
	KindEmergency      Kind = "emergency"
	KindJob            Kind = "job"
)

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type VehicleStatus string

const (
	StatusNormal    VehicleStatus = "normal"
	StatusEmergency VehicleStatus = "emergency"
)

// VehicleState is the latest known report for one vehicle (CAM-equivalent).
type VehicleState struct {
	ID         string        `json:"vehicle_id"`
	Position   Position      `json:"position"`
	Speed      float64       `json:"speed"`
	Heading    float64       `json:"heading"`
	Status     VehicleStatus `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	ReceivedAt time.Time     `json:"received_at"`
}

// Same reports whether two reports are indistinguishable on the wire.
// Arrival bookkeeping is excluded so a re-delivered payload compares equal.
func (v *VehicleState) Same(o *VehicleState) bool {
	return o != nil &&
		v.ID == o.ID &&
		v.Position == o.Position &&
		v.Speed == o.Speed &&
		v.Heading == o.Heading &&
		v.Status == o.Status &&
		v.Timestamp.Equal(o.Timestamp)
}

type SignalPhase string

const (
	SignalRed    SignalPhase = "red"
	SignalYellow SignalPhase = "yellow"
	SignalGreen  SignalPhase = "green"
)

// InfrastructureState is the latest known report for one roadside item.
type InfrastructureState struct {
	ID            string      `json:"infrastructure_id"`
	Position      Position    `json:"position"`
	SignalPhase   SignalPhase `json:"traffic_light_state"`
	RemainingSecs int         `json:"remaining_time"`
	Timestamp     time.Time   `json:"timestamp"`
	ReceivedAt    time.Time   `json:"received_at"`
}

func (i *InfrastructureState) Same(o *InfrastructureState) bool {
	return o != nil &&
		i.ID == o.ID &&
		i.Position == o.Position &&
		i.SignalPhase == o.SignalPhase &&
		i.RemainingSecs == o.RemainingSecs &&
		i.Timestamp.Equal(o.Timestamp)
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// EmergencyEvent is a DENM-equivalent broadcast. It is append-only: once
// created it is never mutated, and its map marker lives for Duration
// independently of the alert list.
type EmergencyEvent struct {
	ID         string        `json:"event_id"`
	Type       string        `json:"event_type"`
	Severity   Severity      `json:"severity"`
	Position   Position      `json:"position"`
	RadiusM    float64       `json:"radius"`
	Duration   time.Duration `json:"-"`
	Timestamp  time.Time     `json:"timestamp"`
	ReceivedAt time.Time     `json:"received_at"`
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is a remote-management job. Status transitions come only from
// server-delivered snapshots; ResponseCount only ever ratchets upward.
type Job struct {
	ID             string         `json:"job_id"`
	Type           string         `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	TargetVehicles []string       `json:"target_vehicles"`
	Parameters     map[string]any `json:"parameters"`
	Status         JobStatus      `json:"status"`
	ResponseCount  int            `json:"response_count"`
}

// JobResponse is a single correlated acknowledgment from a target vehicle.
type JobResponse struct {
	JobID     string    `json:"job_id"`
	VehicleID string    `json:"vehicle_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Counts are the tracked-entity totals surfaced to the operator.
type Counts struct {
	Vehicles       int `json:"vehicles"`
	Infrastructure int `json:"infrastructure"`
	Jobs           int `json:"jobs"`
	Alerts         int `json:"alerts"`
}

// Change is the "entity changed" notification emitted by the reconciler.
// Exactly one of the entity pointers matching Kind is set. For emergencies
// the current alert window rides along so the overlay can mirror it exactly.
type Change struct {
	Kind           Kind
	ID             string
	Vehicle        *VehicleState
	Infrastructure *InfrastructureState
	Emergency      *EmergencyEvent
	Job            *Job
	Alerts         []EmergencyEvent
}
