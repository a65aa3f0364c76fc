package ownership

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type note struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
}

type noteRepo map[uuid.UUID]*note

func (r noteRepo) FindOwned(_ context.Context, id, doctorID uuid.UUID) (*note, error) {
	n, ok := r[id]
	if !ok || n.DoctorID != doctorID {
		return nil, ErrNotFound
	}
	return n, nil
}

type nilRepo struct{}

func (nilRepo) FindOwned(context.Context, uuid.UUID, uuid.UUID) (*note, error) { return nil, nil }

func TestLoad(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	n := &note{ID: uuid.New(), DoctorID: owner}
	repo := noteRepo{n.ID: n}
	ctx := context.Background()

	got, err := Load[note](ctx, repo, n.ID, owner)
	if err != nil || got != n {
		t.Fatalf("expected owner to load note, got %v, %v", got, err)
	}

	if _, err := Load[note](ctx, repo, n.ID, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other doctor, got %v", err)
	}
	if _, err := Load[note](ctx, repo, uuid.New(), owner); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}
	if _, err := Load[note](ctx, nilRepo{}, n.ID, owner); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for nil result, got %v", err)
	}
}

func TestHTTPError(t *testing.T) {
	plain := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"not found", fmt.Errorf("get patient: %w", ErrNotFound), http.StatusNotFound, "patient not found"},
		{"validation", Invalid("first_name", "is required"), http.StatusBadRequest, "first_name is required"},
		{"http error", echo.NewHTTPError(http.StatusConflict, "email already registered"), http.StatusConflict, "email already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HTTPError(tt.err, "patient")
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %T", err)
			}
			if he.Code != tt.wantCode || he.Message != tt.wantMsg {
				t.Errorf("got %d %v, want %d %s", he.Code, he.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}

	if got := HTTPError(plain, "patient"); got != plain {
		t.Errorf("expected unknown errors to pass through, got %v", got)
	}
	if HTTPError(nil, "patient") != nil {
		t.Error("expected nil for nil")
	}
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("first_name", strings.Repeat("é", 5), 5); err != nil {
		t.Errorf("expected 5 two-byte characters to fit 5, got %v", err)
	}
	err := MaxLength("first_name", "abcdef", 5)
	if !IsValidation(err) || err.Error() != "first_name must be at most 5 characters" {
		t.Errorf("unexpected error %v", err)
	}
	if err := MaxLengthPtr("phone", nil, 1); err != nil {
		t.Errorf("expected nil value to pass, got %v", err)
	}

	joined := errors.Join(nil, MaxLength("dosage", "toolong", 3), MaxLength("frequency", "toolong", 3))
	he, ok := HTTPError(joined, "prescription").(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest || he.Message != "dosage must be at most 3 characters" {
		t.Errorf("expected 400 naming the first field, got %v", he)
	}
}

func TestParseID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	_, err := ParseID(c, "id", "appointment")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}

	want := uuid.New()
	c.SetParamValues(want.String())
	got, err := ParseID(c, "id", "appointment")
	if err != nil || got != want {
		t.Errorf("expected %s, got %s (%v)", want, got, err)
	}
}
