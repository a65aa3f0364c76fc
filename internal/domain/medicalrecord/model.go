package medicalrecord

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
)

// Vitals are the measurements taken at a visit. Stored as JSONB.
type Vitals struct {
	BloodPressure    *string  `json:"blood_pressure,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
	Weight           *float64 `json:"weight,omitempty"`
	Height           *float64 `json:"height,omitempty"`
}

func (v *Vitals) empty() bool {
	return v.BloodPressure == nil && v.HeartRate == nil && v.Temperature == nil &&
		v.RespiratoryRate == nil && v.OxygenSaturation == nil && v.Weight == nil && v.Height == nil
}

// Record is one clinical encounter for a patient. DoctorID is the author,
// which is not necessarily the patient's doctor for imported records.
type Record struct {
	ID            uuid.UUID        `json:"id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	DoctorID      *uuid.UUID       `json:"doctor_id,omitempty"`
	Diagnosis     string           `json:"diagnosis"`
	Symptoms      *string          `json:"symptoms,omitempty"`
	Vitals        *Vitals          `json:"vitals,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	TreatmentPlan *string          `json:"treatment_plan,omitempty"`
	RecordDate    civil.Date       `json:"record_date"`
	FollowUpDate  *civil.Date      `json:"follow_up_date,omitempty"`
	Patient       *patient.Summary `json:"patient,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// UnmarshalJSON treats a null record_date like an absent one, so the service
// default applies.
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	aux := struct {
		*plain
		RecordDate *civil.Date `json:"record_date"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.RecordDate != nil {
		r.RecordDate = *aux.RecordDate
	}
	return nil
}

type ListFilter struct {
	PatientID *uuid.UUID
	Limit     int
	Offset    int
}
