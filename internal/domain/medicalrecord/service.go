package medicalrecord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/ownership"
)

// ErrPatientNotFound is returned when a record refers to a patient the
// doctor does not own.
var ErrPatientNotFound = errors.New("patient not found")

type Service struct {
	records  Repository
	patients ownership.Scoped[patient.Patient]
	now      func() time.Time
}

func NewService(records Repository, patients ownership.Scoped[patient.Patient]) *Service {
	return &Service{records: records, patients: patients, now: time.Now}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) normalize(r *Record) error {
	if r.PatientID == uuid.Nil {
		return ownership.Invalid("patient_id", "is required")
	}
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	if r.Diagnosis == "" {
		return ownership.Invalid("diagnosis", "is required")
	}
	if r.RecordDate.IsZero() {
		r.RecordDate = civil.DateOf(s.now())
	}
	if r.FollowUpDate != nil && r.FollowUpDate.Before(r.RecordDate) {
		return ownership.Invalid("follow_up_date", "cannot precede record_date")
	}
	if r.Vitals != nil {
		if err := validateVitals(r.Vitals); err != nil {
			return err
		}
		if r.Vitals.empty() {
			r.Vitals = nil
		}
	}
	r.Symptoms = trimPtr(r.Symptoms)
	r.Notes = trimPtr(r.Notes)
	r.TreatmentPlan = trimPtr(r.TreatmentPlan)
	return nil
}

func validateVitals(v *Vitals) error {
	v.BloodPressure = trimPtr(v.BloodPressure)
	if v.HeartRate != nil && *v.HeartRate <= 0 {
		return ownership.Invalid("vitals.heart_rate", "must be positive")
	}
	if v.RespiratoryRate != nil && *v.RespiratoryRate <= 0 {
		return ownership.Invalid("vitals.respiratory_rate", "must be positive")
	}
	if v.OxygenSaturation != nil && (*v.OxygenSaturation < 0 || *v.OxygenSaturation > 100) {
		return ownership.Invalid("vitals.oxygen_saturation", "must be between 0 and 100")
	}
	if v.Weight != nil && *v.Weight <= 0 {
		return ownership.Invalid("vitals.weight", "must be positive")
	}
	if v.Height != nil && *v.Height <= 0 {
		return ownership.Invalid("vitals.height", "must be positive")
	}
	return nil
}

func (s *Service) ownedPatient(ctx context.Context, patientID, doctorID uuid.UUID) (*patient.Summary, error) {
	p, err := ownership.Load(ctx, s.patients, patientID, doctorID)
	if errors.Is(err, ownership.ErrNotFound) {
		return nil, fmt.Errorf("patient %s: %w", patientID, ErrPatientNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p.Summary(), nil
}

// Create stores a record authored by doctorID for one of their patients.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, r *Record) error {
	if err := s.normalize(r); err != nil {
		return err
	}
	ps, err := s.ownedPatient(ctx, r.PatientID, doctorID)
	if err != nil {
		return err
	}
	author := doctorID
	r.DoctorID = &author
	if err := s.records.Create(ctx, r, doctorID); err != nil {
		if errors.Is(err, ownership.ErrNotFound) {
			return ErrPatientNotFound
		}
		return err
	}
	r.Patient = ps
	return nil
}

func (s *Service) Get(ctx context.Context, id, doctorID uuid.UUID) (*Record, error) {
	return ownership.Load[Record](ctx, s.records, id, doctorID)
}

func (s *Service) Update(ctx context.Context, doctorID uuid.UUID, r *Record) error {
	if err := s.normalize(r); err != nil {
		return err
	}
	if _, err := s.Get(ctx, r.ID, doctorID); err != nil {
		return err
	}
	ps, err := s.ownedPatient(ctx, r.PatientID, doctorID)
	if err != nil {
		return err
	}
	if err := s.records.Update(ctx, r, doctorID); err != nil {
		return err
	}
	r.Patient = ps
	return nil
}

func (s *Service) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	return s.records.Delete(ctx, id, doctorID)
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Record, int, error) {
	return s.records.List(ctx, doctorID, f)
}

// CountThisMonth counts records dated in the current calendar month.
func (s *Service) CountThisMonth(ctx context.Context, doctorID uuid.UUID) (int, error) {
	today := civil.DateOf(s.now())
	return s.records.CountSince(ctx, doctorID, civil.Date{Year: today.Year, Month: today.Month, Day: 1})
}
