// Package ownership scopes patient data to the doctor who owns it. Every
// repository of patient-scoped records implements Scoped, and a record that
// belongs to another doctor is indistinguishable from one that does not exist.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting doctor.
var ErrNotFound = errors.New("not found")

// Scoped is a repository whose reads are filtered by owning doctor, either
// directly or through the record's patient.
type Scoped[T any] interface {
	FindOwned(ctx context.Context, id, doctorID uuid.UUID) (*T, error)
}

// Load fetches id for doctorID. A nil result with a nil error from the
// repository is treated as a miss.
func Load[T any](ctx context.Context, repo Scoped[T], id, doctorID uuid.UUID) (*T, error) {
	v, err := repo.FindOwned(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// ValidationError is a client input problem, answered with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// MaxLength rejects values longer than n characters, the VARCHAR(n) bound
// of the column the value is stored in. Postgres counts characters, not bytes.
func MaxLength(field, value string, n int) error {
	if utf8.RuneCountInString(value) > n {
		return Invalid(field, fmt.Sprintf("must be at most %d characters", n))
	}
	return nil
}

// MaxLengthPtr is MaxLength for optional values.
func MaxLengthPtr(field string, value *string, n int) error {
	if value == nil {
		return nil
	}
	return MaxLength(field, *value, n)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// HTTPError maps repository and service errors for a resource onto HTTP
// errors. Unknown errors pass through unchanged so the error handler
// reports them as 500.
func HTTPError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, resource+" not found")
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return err
}

// ParseID reads a uuid path parameter. A malformed id cannot name an owned
// record, so it is reported as a miss.
func ParseID(c echo.Context, param, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusNotFound, resource+" not found")
	}
	return id, nil
}
