package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores appointments. Ownership runs through the appointment's
// patient: every method filters on patient.doctor_id and reports foreign
// rows as ownership.ErrNotFound. Returned appointments carry Patient.
type Repository interface {
	Create(ctx context.Context, a *Appointment, doctorID uuid.UUID) error
	FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment, doctorID uuid.UUID) error
	UpdateStatus(ctx context.Context, id, doctorID uuid.UUID, status string) error
	SetCalendarEventID(ctx context.Context, id, doctorID uuid.UUID, eventID *string) error
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Appointment, int, error)
	CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[string]int, error)
}
