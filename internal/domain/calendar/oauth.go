package calendar

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/clinic/clinic/internal/domain/user"
)

// EventsScope lets the server create and remove events it owns.
const EventsScope = "https://www.googleapis.com/auth/calendar.events"

const (
	stateAudience = "calendar-link"
	stateTTL      = 10 * time.Minute
)

var ErrInvalidState = errors.New("invalid oauth state")

// OAuth runs the Google authorization code flow. The state parameter is a
// short-lived token naming the user who started the flow.
type OAuth struct {
	cfg      *oauth2.Config
	stateKey []byte
	now      func() time.Time
}

// NewOAuth derives the state signing key from secret so state tokens never
// verify as access tokens.
func NewOAuth(clientID, clientSecret, redirectURI string, secret []byte) *OAuth {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(stateAudience))
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{EventsScope},
			Endpoint:     google.Endpoint,
		},
		stateKey: mac.Sum(nil),
		now:      time.Now,
	}
}

// AuthURL asks for offline access so the grant carries a refresh token.
func (o *OAuth) AuthURL(userID uuid.UUID) (string, error) {
	now := o.now()
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}).SignedString(o.stateKey)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return o.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// CheckState verifies that state was issued by AuthURL for userID.
func (o *OAuth) CheckState(state string, userID uuid.UUID) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (interface{}, error) {
		return o.stateKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	)
	if err != nil || !token.Valid || claims.Subject != userID.String() {
		return ErrInvalidState
	}
	return nil
}

func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// Fresh returns a valid access token for the stored grant, refreshing it
// when it has expired.
func (o *OAuth) Fresh(ctx context.Context, stored *user.CalendarToken) (*oauth2.Token, error) {
	tok, err := o.cfg.TokenSource(ctx, &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.Expiry,
		TokenType:    "Bearer",
	}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return tok, nil
}
