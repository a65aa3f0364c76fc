// Package memstore keeps every repository in process memory. It backs the
// STORE=memory demo mode and the HTTP tests; data is lost on restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/medicalrecord"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/domain/user"
	"github.com/clinic/clinic/pkg/pagination"
)

// Store holds all tables behind one lock so ownership checks through the
// patient table see a consistent view.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*user.User
	patients      map[uuid.UUID]*patient.Patient
	appointments  map[uuid.UUID]*appointment.Appointment
	records       map[uuid.UUID]*medicalrecord.Record
	prescriptions map[uuid.UUID]*prescription.Prescription
	now           func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*user.User),
		patients:      make(map[uuid.UUID]*patient.Patient),
		appointments:  make(map[uuid.UUID]*appointment.Appointment),
		records:       make(map[uuid.UUID]*medicalrecord.Record),
		prescriptions: make(map[uuid.UUID]*prescription.Prescription),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() user.Repository                   { return &userRepo{s} }
func (s *Store) Patients() patient.Repository             { return &patientRepo{s} }
func (s *Store) Appointments() appointment.Repository     { return &appointmentRepo{s} }
func (s *Store) MedicalRecords() medicalrecord.Repository { return &recordRepo{s} }
func (s *Store) Prescriptions() prescription.Repository   { return &prescriptionRepo{s} }

// ownsPatient must be called with s.mu held.
func (s *Store) ownsPatient(patientID, doctorID uuid.UUID) bool {
	p, ok := s.patients[patientID]
	return ok && p.DoctorID == doctorID
}

// summary must be called with s.mu held.
func (s *Store) summary(patientID uuid.UUID) *patient.Summary {
	if p, ok := s.patients[patientID]; ok {
		return p.Summary()
	}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(items))
	return items[start:end]
}

// Ping lets the store stand in for the database in /health/db.
func (s *Store) Ping(context.Context) error { return nil }
