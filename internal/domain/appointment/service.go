package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/ownership"
)

// ErrInvalidTransition is returned when a status change leaves a final
// state.
var ErrInvalidTransition = errors.New("invalid status transition")

type Service struct {
	appointments Repository
	patients     ownership.Scoped[patient.Patient]
}

func NewService(appointments Repository, patients ownership.Scoped[patient.Patient]) *Service {
	return &Service{appointments: appointments, patients: patients}
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

func (s *Service) validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return ownership.Invalid("patient_id", "is required")
	}
	if a.DateTime.IsZero() {
		return ownership.Invalid("date_time", "is required")
	}
	a.Status = strings.ToUpper(strings.TrimSpace(a.Status))
	if a.Status != "" && !IsValidStatus(a.Status) {
		return ownership.Invalid("status", "must be one of SCHEDULED, COMPLETED, CANCELLED")
	}
	a.Reason = trimPtr(a.Reason)
	a.Notes = trimPtr(a.Notes)
	return nil
}

// ownedPatient loads the patient an appointment refers to. A foreign
// patient is reported as a missing one.
func (s *Service) ownedPatient(ctx context.Context, patientID, doctorID uuid.UUID) (*PatientSummary, error) {
	p, err := ownership.Load(ctx, s.patients, patientID, doctorID)
	if errors.Is(err, ownership.ErrNotFound) {
		return nil, fmt.Errorf("patient %s: %w", patientID, ErrPatientNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p.Summary(), nil
}

// ErrPatientNotFound is returned when the referenced patient does not
// belong to the doctor.
var ErrPatientNotFound = errors.New("patient not found")

// Create books a new appointment. New appointments are always SCHEDULED.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	if a.Status != "" && a.Status != StatusScheduled {
		return ownership.Invalid("status", "must be SCHEDULED for a new appointment")
	}
	a.Status = StatusScheduled
	a.DateTime = a.DateTime.UTC()
	a.CalendarEventID = nil

	ps, err := s.ownedPatient(ctx, a.PatientID, doctorID)
	if err != nil {
		return err
	}
	if err := s.appointments.Create(ctx, a, doctorID); err != nil {
		if errors.Is(err, ownership.ErrNotFound) {
			return ErrPatientNotFound
		}
		return err
	}
	a.Patient = ps
	return nil
}

func (s *Service) Get(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	return ownership.Load[Appointment](ctx, s.appointments, id, doctorID)
}

// Update replaces the appointment's fields. A status change must follow
// CanTransition.
func (s *Service) Update(ctx context.Context, doctorID uuid.UUID, a *Appointment) error {
	if err := s.validate(a); err != nil {
		return err
	}
	cur, err := s.Get(ctx, a.ID, doctorID)
	if err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = cur.Status
	}
	if !CanTransition(cur.Status, a.Status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cur.Status, a.Status)
	}
	a.DateTime = a.DateTime.UTC()

	ps, err := s.ownedPatient(ctx, a.PatientID, doctorID)
	if err != nil {
		return err
	}
	if err := s.appointments.Update(ctx, a, doctorID); err != nil {
		return err
	}
	a.Patient = ps
	return nil
}

// UpdateStatus moves a SCHEDULED appointment to COMPLETED or CANCELLED.
func (s *Service) UpdateStatus(ctx context.Context, id, doctorID uuid.UUID, status string) (*Appointment, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		return nil, ownership.Invalid("status", "is required")
	}
	if !IsValidStatus(status) {
		return nil, ownership.Invalid("status", "must be one of SCHEDULED, COMPLETED, CANCELLED")
	}

	a, err := s.Get(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, status)
	}
	if a.Status == status {
		return a, nil
	}
	if err := s.appointments.UpdateStatus(ctx, id, doctorID, status); err != nil {
		return nil, err
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return a, nil
}

// SetCalendarEventID records (or clears, with nil) the external calendar
// event mirroring the appointment.
func (s *Service) SetCalendarEventID(ctx context.Context, id, doctorID uuid.UUID, eventID *string) error {
	return s.appointments.SetCalendarEventID(ctx, id, doctorID, eventID)
}

func (s *Service) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	return s.appointments.Delete(ctx, id, doctorID)
}

func (s *Service) List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Appointment, int, error) {
	if f.Status != "" {
		f.Status = strings.ToUpper(f.Status)
		if !IsValidStatus(f.Status) {
			return nil, 0, ownership.Invalid("status", "must be one of SCHEDULED, COMPLETED, CANCELLED")
		}
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, ownership.Invalid("to", "must be after from")
	}
	return s.appointments.List(ctx, doctorID, f)
}

func (s *Service) CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[string]int, error) {
	return s.appointments.CountByStatus(ctx, doctorID)
}
