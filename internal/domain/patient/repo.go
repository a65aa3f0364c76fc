package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores patients. Every method is scoped to the owning doctor;
// a patient of another doctor is reported as ownership.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Patient, int, error)
	Count(ctx context.Context, doctorID uuid.UUID) (int, error)
}
