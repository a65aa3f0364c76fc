package user

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/ownership"
)

// IdentityLookup resolves gate identities from the user repository.
type IdentityLookup struct {
	users Repository
}

func NewIdentityLookup(users Repository) *IdentityLookup {
	return &IdentityLookup{users: users}
}

func (l *IdentityLookup) LookupIdentity(ctx context.Context, id uuid.UUID) (auth.Identity, error) {
	u, err := l.users.GetByID(ctx, id)
	if errors.Is(err, ownership.ErrNotFound) {
		return auth.Identity{}, auth.ErrIdentityNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}
