package overlay

import "car2x-dashboard/internal/domain"

// Category is the visual class a renderer uses to pick icon shape and color.
// Operators triage by these at a glance, so the mapping is behavior, not
// decoration.
type Category string

const (
	CategoryVehicleNormal    Category = "vehicle-normal"
	CategoryVehicleEmergency Category = "vehicle-emergency"
	CategorySignalRed        Category = "signal-red"
	CategorySignalYellow     Category = "signal-yellow"
	CategorySignalGreen      Category = "signal-green"
	CategoryAlertLow         Category = "alert-low"
	CategoryAlertMedium      Category = "alert-medium"
	CategoryAlertHigh        Category = "alert-high"
	CategoryJobPending       Category = "job-pending"
	CategoryJobInProgress    Category = "job-in-progress"
	CategoryJobCompleted     Category = "job-completed"
	CategoryJobFailed        Category = "job-failed"
)

func vehicleCategory(v *domain.VehicleState) Category {
	if v.Status == domain.StatusEmergency {
		return CategoryVehicleEmergency
	}
	// Unknown statuses render as normal; the wire is free-form.
	return CategoryVehicleNormal
}

func signalCategory(i *domain.InfrastructureState) Category {
	switch i.SignalPhase {
	case domain.SignalGreen:
		return CategorySignalGreen
	case domain.SignalYellow:
		return CategorySignalYellow
	default:
		return CategorySignalRed
	}
}

func alertCategory(e *domain.EmergencyEvent) Category {
	switch e.Severity {
	case domain.SeverityHigh:
		return CategoryAlertHigh
	case domain.SeverityMedium:
		return CategoryAlertMedium
	default:
		return CategoryAlertLow
	}
}

func jobCategory(j *domain.Job) Category {
	switch j.Status {
	case domain.JobInProgress:
		return CategoryJobInProgress
	case domain.JobCompleted:
		return CategoryJobCompleted
	case domain.JobFailed:
		return CategoryJobFailed
	default:
		return CategoryJobPending
	}
}

// CategoryFor maps a changed entity to its visual category. Pure function of
// entity state.
func CategoryFor(ch domain.Change) Category {
	switch ch.Kind {
	case domain.KindVehicle:
		return vehicleCategory(ch.Vehicle)
	case domain.KindInfrastructure:
		return signalCategory(ch.Infrastructure)
	case domain.KindEmergency:
		return alertCategory(ch.Emergency)
	case domain.KindJob:
		return jobCategory(ch.Job)
	}
	panic("overlay: no category mapping for kind " + string(ch.Kind))
}
