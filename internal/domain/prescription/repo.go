package prescription

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Repository stores prescriptions. Ownership runs through the patient, so
// a doctor reassigned a patient sees the patient's earlier prescriptions.
type Repository interface {
	Create(ctx context.Context, p *Prescription, doctorID uuid.UUID) error
	FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription, doctorID uuid.UUID) error
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Prescription, int, error)
	CountActive(ctx context.Context, doctorID uuid.UUID, today civil.Date) (int, error)
}
