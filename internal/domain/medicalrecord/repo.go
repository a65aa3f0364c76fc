package medicalrecord

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Repository stores medical records, scoped through the record's patient to
// the patient's doctor.
type Repository interface {
	Create(ctx context.Context, r *Record, doctorID uuid.UUID) error
	FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record, doctorID uuid.UUID) error
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
	List(ctx context.Context, doctorID uuid.UUID, f ListFilter) ([]*Record, int, error)
	// CountSince counts records dated on or after since.
	CountSince(ctx context.Context, doctorID uuid.UUID, since civil.Date) (int, error)
}
