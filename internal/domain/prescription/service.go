package prescription

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

var ErrPatientNotFound = errors.New("patient not found")

type Service struct {
	prescriptions Repository
	patients      ownership.Scoped[patient.Patient]
	now           func() time.Time
}

func NewService(prescriptions Repository, patients ownership.Scoped[patient.Patient]) *Service {
	return &Service{prescriptions: prescriptions, patients: patients, now: time.Now}
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

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

// Column widths of prescription. maxDosageLen also bounds frequency and duration.
const (
	maxMedicationLen = 255
	maxDosageLen     = 120
)

func (s *Service) normalize(rx *Prescription) error {
	if rx.PatientID == uuid.Nil {
		return ownership.Invalid("patient_id", "is required")
	}
	rx.Medication = strings.TrimSpace(rx.Medication)
	rx.Dosage = strings.TrimSpace(rx.Dosage)
	rx.Frequency = strings.TrimSpace(rx.Frequency)
	switch {
	case rx.Medication == "":
		return ownership.Invalid("medication", "is required")
	case rx.Dosage == "":
		return ownership.Invalid("dosage", "is required")
	case rx.Frequency == "":
		return ownership.Invalid("frequency", "is required")
	}
	if rx.IssuedDate.IsZero() {
		rx.IssuedDate = s.today()
	}
	if rx.ExpiryDate != nil && rx.ExpiryDate.Before(rx.IssuedDate) {
		return ownership.Invalid("expiry_date", "cannot precede issued_date")
	}
	rx.Duration = trimPtr(rx.Duration)
	rx.Notes = trimPtr(rx.Notes)
	return errors.Join(
		ownership.MaxLength("medication", rx.Medication, maxMedicationLen),
		ownership.MaxLength("dosage", rx.Dosage, maxDosageLen),
		ownership.MaxLength("frequency", rx.Frequency, maxDosageLen),
		ownership.MaxLengthPtr("duration", rx.Duration, maxDosageLen),
	)
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

// Create issues a prescription from doctorID to one of their patients.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, rx *Prescription) error {
	if err := s.normalize(rx); err != nil {
		return err
	}
	ps, err := s.ownedPatient(ctx, rx.PatientID, doctorID)
	if err != nil {
		return err
	}
	rx.DoctorID = doctorID
	if err := s.prescriptions.Create(ctx, rx, doctorID); err != nil {
		if errors.Is(err, ownership.ErrNotFound) {
			return ErrPatientNotFound
		}
		return err
	}
	rx.Patient = ps
	return nil
}

func (s *Service) Get(ctx context.Context, id, doctorID uuid.UUID) (*Prescription, error) {
	return ownership.Load[Prescription](ctx, s.prescriptions, id, doctorID)
}

func (s *Service) Update(ctx context.Context, doctorID uuid.UUID, rx *Prescription) error {
	if err := s.normalize(rx); err != nil {
		return err
	}
	if _, err := s.Get(ctx, rx.ID, doctorID); err != nil {
		return err
	}
	ps, err := s.ownedPatient(ctx, rx.PatientID, doctorID)
	if err != nil {
		return err
	}
	if err := s.prescriptions.Update(ctx, rx, doctorID); err != nil {
		return err
	}
	rx.Patient = ps
	return nil
}

func (s *Service) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	return s.prescriptions.Delete(ctx, id, doctorID)
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Prescription, int, error) {
	if f.Today.IsZero() {
		f.Today = s.today()
	}
	return s.prescriptions.List(ctx, doctorID, f)
}

func (s *Service) CountActive(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return s.prescriptions.CountActive(ctx, doctorID, s.today())
}
