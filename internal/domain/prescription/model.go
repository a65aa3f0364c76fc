package prescription

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
)

type Prescription struct {
	ID         uuid.UUID        `json:"id"`
	PatientID  uuid.UUID        `json:"patient_id"`
	DoctorID   uuid.UUID        `json:"doctor_id"`
	Medication string           `json:"medication"`
	Dosage     string           `json:"dosage"`
	Frequency  string           `json:"frequency"`
	Duration   *string          `json:"duration,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
	IssuedDate civil.Date       `json:"issued_date"`
	ExpiryDate *civil.Date      `json:"expiry_date,omitempty"`
	Patient    *patient.Summary `json:"patient,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// UnmarshalJSON treats a null issued_date like an absent one, so the service
// default applies.
func (p *Prescription) UnmarshalJSON(b []byte) error {
	type plain Prescription
	aux := struct {
		*plain
		IssuedDate *civil.Date `json:"issued_date"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.IssuedDate != nil {
		p.IssuedDate = *aux.IssuedDate
	}
	return nil
}

// ActiveOn reports whether the prescription is still valid on day. One
// without an expiry date never lapses.
func (p *Prescription) ActiveOn(day civil.Date) bool {
	return p.ExpiryDate == nil || !p.ExpiryDate.Before(day)
}

// ListFilter narrows a doctor's prescriptions. When Active is set, only
// prescriptions whose active state on Today matches are returned.
type ListFilter struct {
	PatientID *uuid.UUID
	Active    *bool
	Today     civil.Date
	Limit     int
	Offset    int
}
