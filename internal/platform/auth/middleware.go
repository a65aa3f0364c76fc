package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuthError is a credential failure. The gate always answers it with 401.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

var (
	ErrMissingToken = &AuthError{Reason: "missing authorization header"}
	ErrBadScheme    = &AuthError{Reason: "invalid authorization format"}
	ErrBadToken     = &AuthError{Reason: "invalid or expired token"}
	ErrRevoked      = &AuthError{Reason: "token has been revoked"}
	ErrUnknownUser  = &AuthError{Reason: "user not found"}
)

// ErrIdentityNotFound is returned by IdentityLookup when no user has the id.
var ErrIdentityNotFound = errors.New("identity not found")

// IdentityLookup resolves a user id against the credential store.
type IdentityLookup interface {
	LookupIdentity(ctx context.Context, userID uuid.UUID) (Identity, error)
}

// Authenticator turns an inbound request into an Identity. Credential
// problems are returned as *AuthError; anything else is an internal failure.
type Authenticator interface {
	Resolve(r *http.Request) (Identity, error)
}

// BearerAuthenticator verifies "Authorization: Bearer <token>" against a
// TokenIssuer, a revocation store and the credential store.
type BearerAuthenticator struct {
	tokens  *TokenIssuer
	users   IdentityLookup
	revoked RevocationStore

	// devUserID, when set, is used for requests that carry no
	// Authorization header at all.
	devUserID uuid.UUID
}

type BearerOption func(*BearerAuthenticator)

// WithRevocation enables revocation checks.
func WithRevocation(store RevocationStore) BearerOption {
	return func(a *BearerAuthenticator) { a.revoked = store }
}

// WithDevUser resolves header-less requests to userID.
func WithDevUser(userID uuid.UUID) BearerOption {
	return func(a *BearerAuthenticator) { a.devUserID = userID }
}

func NewBearerAuthenticator(tokens *TokenIssuer, users IdentityLookup, opts ...BearerOption) *BearerAuthenticator {
	a := &BearerAuthenticator{tokens: tokens, users: users}
	for _, o := range opts {
		o(a)
	}
	return a
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", ErrBadScheme
	}
	return token, nil
}

func (a *BearerAuthenticator) Resolve(r *http.Request) (Identity, error) {
	ctx := r.Context()
	header := r.Header.Get(echo.HeaderAuthorization)

	if header == "" && a.devUserID != uuid.Nil {
		return a.lookup(ctx, a.devUserID)
	}

	tokenStr, err := BearerToken(header)
	if err != nil {
		return Identity{}, err
	}

	claims, err := a.tokens.Verify(tokenStr)
	if err != nil {
		return Identity{}, ErrBadToken
	}

	if a.revoked != nil && claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, err
		}
		if revoked {
			return Identity{}, ErrRevoked
		}
	}

	userID, _ := claims.UserID()
	return a.lookup(ctx, userID)
}

func (a *BearerAuthenticator) lookup(ctx context.Context, userID uuid.UUID) (Identity, error) {
	id, err := a.users.LookupIdentity(ctx, userID)
	if errors.Is(err, ErrIdentityNotFound) {
		return Identity{}, ErrUnknownUser
	}
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Gate applies an Authenticator to every request not matched by skipper.
// On success the identity is stored in the request context and the
// X-User-ID header is rewritten to the resolved id.
func Gate(a Authenticator, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			req.Header.Del(UserIDHeader)

			if skipper != nil && skipper(c) {
				return next(c)
			}

			id, err := a.Resolve(req)
			if err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					return echo.NewHTTPError(http.StatusUnauthorized, authErr.Reason)
				}
				return err
			}

			req.Header.Set(UserIDHeader, id.UserID.String())
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			return next(c)
		}
	}
}

// MustIdentity returns the identity set by Gate or a 401 error for handlers
// mounted without it.
func MustIdentity(c echo.Context) (Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok || id.UserID == uuid.Nil {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}
