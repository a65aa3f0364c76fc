package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/ownership"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

// dummyHash is compared against when the email is unknown so that login
// takes the same time whether or not the account exists.
var dummyHash, _ = auth.HashPassword("not-a-real-password")

type Service struct {
	users   Repository
	tokens  *auth.TokenIssuer
	revoked auth.RevocationStore
}

func NewService(users Repository, tokens *auth.TokenIssuer, revoked auth.RevocationStore) *Service {
	return &Service{users: users, tokens: tokens, revoked: revoked}
}

// Column widths of app_user.
const (
	maxEmailLen          = 320
	maxNameLen           = 100
	maxSpecializationLen = 120
	maxPhoneLen          = 40
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ownership.Invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ownership.Invalid("email", "is not a valid address")
	}
	return ownership.MaxLength("email", email, maxEmailLen)
}

func validateNames(first, last string) error {
	if strings.TrimSpace(first) == "" {
		return ownership.Invalid("first_name", "is required")
	}
	if strings.TrimSpace(last) == "" {
		return ownership.Invalid("last_name", "is required")
	}
	return errors.Join(
		ownership.MaxLength("first_name", strings.TrimSpace(first), maxNameLen),
		ownership.MaxLength("last_name", strings.TrimSpace(last), maxNameLen),
	)
}

func validateContact(specialization, phone *string) error {
	return errors.Join(
		ownership.MaxLengthPtr("specialization", specialization, maxSpecializationLen),
		ownership.MaxLengthPtr("phone", phone, maxPhoneLen),
	)
}

func validatePassword(field, pw string) error {
	if len(pw) < auth.MinPasswordLength {
		return ownership.Invalid(field, fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength))
	}
	if len(pw) > auth.MaxPasswordLength {
		return ownership.Invalid(field, fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordLength))
	}
	return nil
}

func (s *Service) issue(u *User) (*AuthResponse, error) {
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResponse{Token: token, ExpiresAt: exp, User: NewProfile(u)}, nil
}

// Register creates a doctor account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", req.Password); err != nil {
		return nil, err
	}
	if err := validateNames(req.FirstName, req.LastName); err != nil {
		return nil, err
	}
	if err := validateContact(req.Specialization, req.Phone); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:          email,
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Role:           auth.RoleDoctor,
		Specialization: req.Specialization,
		Phone:          req.Phone,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ownership.Invalid("", "email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ownership.ErrNotFound) {
		auth.CheckPassword(req.Password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != "" {
		email := normalizeEmail(req.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		u.Email = email
	}
	if err := validateNames(req.FirstName, req.LastName); err != nil {
		return nil, err
	}
	if err := validateContact(req.Specialization, req.Phone); err != nil {
		return nil, err
	}
	u.FirstName = strings.TrimSpace(req.FirstName)
	u.LastName = strings.TrimSpace(req.LastName)
	u.Specialization = req.Specialization
	u.Phone = req.Phone

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return ownership.Invalid("current_password", "is required")
	}
	if err := validatePassword("new_password", req.NewPassword); err != nil {
		return err
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(req.CurrentPassword, u.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePasswordHash(ctx, id, hash)
}

// Logout revokes token until it would have expired anyway. Tokens that no
// longer verify are already unusable and are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if s.revoked == nil {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil || claims.ID == "" {
		return nil
	}
	// Verify rejects tokens without an expiry.
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// -- Calendar credentials --

func (s *Service) CalendarToken(ctx context.Context, id uuid.UUID) (*CalendarToken, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Calendar, nil
}

func (s *Service) SetCalendarToken(ctx context.Context, id uuid.UUID, tok CalendarToken) error {
	if tok.RefreshToken == "" {
		return ownership.Invalid("refresh_token", "is required")
	}
	return s.users.SetCalendarToken(ctx, id, tok)
}

func (s *Service) ClearCalendarToken(ctx context.Context, id uuid.UUID) error {
	return s.users.ClearCalendarToken(ctx, id)
}
