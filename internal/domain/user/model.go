package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a clinic account. Doctors own patients; admins pass every role
// check but still only see the patients they own.
type User struct {
	ID             uuid.UUID      `json:"id"`
	Email          string         `json:"email"`
	PasswordHash   string         `json:"-"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Role           string         `json:"role"`
	Specialization *string        `json:"specialization,omitempty"`
	Phone          *string        `json:"phone,omitempty"`
	Calendar       *CalendarToken `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// CalendarLinked reports whether the user has granted calendar access.
func (u *User) CalendarLinked() bool {
	return u.Calendar != nil && u.Calendar.RefreshToken != ""
}

// CalendarToken is the stored OAuth grant for the user's Google Calendar.
type CalendarToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	CalendarID   string
}

// Profile is the JSON shape of the authenticated user.
type Profile struct {
	*User
	CalendarLinked bool `json:"calendar_linked"`
}

func NewProfile(u *User) Profile {
	return Profile{User: u, CalendarLinked: u.CalendarLinked()}
}

type RegisterRequest struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Specialization *string `json:"specialization,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Specialization *string `json:"specialization,omitempty"`
	Phone          *string `json:"phone,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}
