package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrEmailTaken = errors.New("email already registered")

// Repository stores users. Lookups that miss return ownership.ErrNotFound.
// Email comparisons are case-insensitive.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetCalendarToken(ctx context.Context, id uuid.UUID, tok CalendarToken) error
	ClearCalendarToken(ctx context.Context, id uuid.UUID) error
}
