package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// UserIDHeader carries the resolved user id on the request once the gate has
// run. Inbound values are discarded.
const UserIDHeader = "X-User-ID"

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by the gate. ok is false
// for requests that never passed through it.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserIDFromContext returns uuid.Nil when no identity is present.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
