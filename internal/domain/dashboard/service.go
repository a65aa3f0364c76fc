// Package dashboard summarises a doctor's practice for the landing page.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
)

// NextAppointmentsLimit is how many upcoming appointments Stats lists.
const NextAppointmentsLimit = 5

type PatientCounter interface {
	Count(ctx context.Context, doctorID uuid.UUID) (int, error)
}

type AppointmentReader interface {
	List(ctx context.Context, doctorID uuid.UUID, f appointment.ListFilter) ([]*appointment.Appointment, int, error)
	CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[string]int, error)
}

type PrescriptionCounter interface {
	CountActive(ctx context.Context, doctorID uuid.UUID) (int, error)
}

type RecordCounter interface {
	CountThisMonth(ctx context.Context, doctorID uuid.UUID) (int, error)
}

type Stats struct {
	TotalPatients        int                        `json:"total_patients"`
	TodayAppointments    int                        `json:"today_appointments"`
	UpcomingAppointments int                        `json:"upcoming_appointments"`
	AppointmentsByStatus map[string]int             `json:"appointments_by_status"`
	ActivePrescriptions  int                        `json:"active_prescriptions"`
	RecordsThisMonth     int                        `json:"records_this_month"`
	NextAppointments     []*appointment.Appointment `json:"next_appointments"`
	GeneratedAt          time.Time                  `json:"generated_at"`
}

type Service struct {
	patients      PatientCounter
	appointments  AppointmentReader
	prescriptions PrescriptionCounter
	records       RecordCounter
	snapshot      func(ctx context.Context, fn func(ctx context.Context) error) error
	now           func() time.Time
}

func NewService(patients PatientCounter, appointments AppointmentReader, prescriptions PrescriptionCounter, records RecordCounter) *Service {
	return &Service{
		patients:      patients,
		appointments:  appointments,
		prescriptions: prescriptions,
		records:       records,
		snapshot:      func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		now:           time.Now,
	}
}

// WithSnapshot makes Stats run its queries through run, typically one
// read-only transaction, so the counts agree with each other.
func (s *Service) WithSnapshot(run func(ctx context.Context, fn func(ctx context.Context) error) error) *Service {
	if run != nil {
		s.snapshot = run
	}
	return s
}

// Stats runs every count inside the configured snapshot. Without one each
// query reads on its own. "Today" is the UTC calendar day.
func (s *Service) Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error) {
	var st *Stats
	err := s.snapshot(ctx, func(ctx context.Context) error {
		var err error
		st, err = s.stats(ctx, doctorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.AddDate(0, 0, 1)

	st := &Stats{GeneratedAt: now}
	var err error

	if st.TotalPatients, err = s.patients.Count(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("count patients: %w", err)
	}

	_, st.TodayAppointments, err = s.appointments.List(ctx, doctorID, appointment.ListFilter{
		From: &startOfDay, To: &endOfDay,
	})
	if err != nil {
		return nil, fmt.Errorf("count today's appointments: %w", err)
	}

	st.NextAppointments, st.UpcomingAppointments, err = s.appointments.List(ctx, doctorID, appointment.ListFilter{
		Status: appointment.StatusScheduled,
		From:   &now,
		Limit:  NextAppointmentsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	if st.NextAppointments == nil {
		st.NextAppointments = []*appointment.Appointment{}
	}

	if st.AppointmentsByStatus, err = s.appointments.CountByStatus(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("count appointments by status: %w", err)
	}
	if st.ActivePrescriptions, err = s.prescriptions.CountActive(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("count active prescriptions: %w", err)
	}
	if st.RecordsThisMonth, err = s.records.CountThisMonth(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("count medical records: %w", err)
	}
	return st, nil
}
