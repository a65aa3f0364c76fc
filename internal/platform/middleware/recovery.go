package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

const panicStackSize = 8 << 10

// Recovery turns a handler panic into a 500 carrying the generic error body.
// The panic value is kept as the internal cause so ErrorHandler logs it too.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}

				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]

				rid, _ := c.Get("request_id").(string)
				evt := logger.Error().
					Err(cause).
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path)
				if uid := auth.UserIDFromContext(c.Request().Context()); uid != uuid.Nil {
					evt = evt.Str("user_id", uid.String())
				}
				evt.Bytes("stack", stack).Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, internalErrorMessage).
					SetInternal(errors.Join(errPanic, cause))
			}()
			return next(c)
		}
	}
}

var errPanic = errors.New("handler panicked")
