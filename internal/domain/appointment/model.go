package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusCompleted: true, StatusCancelled: true,
}

// Statuses lists every appointment status in display order.
var Statuses = []string{StatusScheduled, StatusCompleted, StatusCancelled}

func IsValidStatus(s string) bool { return validStatuses[s] }

// CanTransition reports whether an appointment may move from one status to
// another. Only scheduled appointments change; completed and cancelled are
// final.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	return from == StatusScheduled && (to == StatusCompleted || to == StatusCancelled)
}

// Duration is the length of every appointment slot.
const Duration = time.Hour

type Appointment struct {
	ID              uuid.UUID       `json:"id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	DateTime        time.Time       `json:"date_time"`
	Status          string          `json:"status"`
	Reason          *string         `json:"reason,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	CalendarEventID *string         `json:"calendar_event_id,omitempty"`
	Patient         *PatientSummary `json:"patient,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// End is when the appointment slot finishes.
func (a *Appointment) End() time.Time {
	return a.DateTime.Add(Duration)
}

// PatientSummary is the patient shown alongside an appointment.
type PatientSummary = patient.Summary

type StatusRequest struct {
	Status string `json:"status"`
}

// ListFilter narrows a doctor's appointments. From is inclusive and To is
// exclusive. Results are ordered by date_time ascending.
type ListFilter struct {
	Status    string
	PatientID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
