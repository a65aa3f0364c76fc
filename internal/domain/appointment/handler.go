package appointment

import (
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/ownership"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.ListAppointments)
	g.POST("", h.CreateAppointment)
	g.GET("/:id", h.GetAppointment)
	g.PUT("/:id", h.UpdateAppointment)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.DELETE("/:id", h.DeleteAppointment)
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return ownership.HTTPError(err, "appointment")
}

// parseTime accepts RFC 3339 timestamps and plain dates. A plain date used
// as an upper bound covers the whole day.
func parseTime(s string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		d = d.AddDays(1)
	}
	return d.In(time.UTC), nil
}

// FilterFromQuery reads status, patient_id, from and to from the query
// string. Pagination is left to the caller.
func FilterFromQuery(c echo.Context) (ListFilter, error) {
	var f ListFilter
	f.Status = c.QueryParam("status")

	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return f, ownership.Invalid("patient_id", "is not a valid id")
		}
		f.PatientID = &pid
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := parseTime(v, false)
		if err != nil {
			return f, ownership.Invalid("from", "must be RFC 3339 or YYYY-MM-DD")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := parseTime(v, true)
		if err != nil {
			return f, ownership.Invalid("to", "must be RFC 3339 or YYYY-MM-DD")
		}
		f.To = &t
	}
	return f, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), id.UserID, &a); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := ownership.ParseID(c, "id", "appointment")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), aid, id.UserID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	f, err := FilterFromQuery(c)
	if err != nil {
		return toHTTP(err)
	}
	pg := pagination.FromContext(c)
	f.Limit, f.Offset = pg.Limit, pg.Offset

	items, total, err := h.svc.List(c.Request().Context(), id.UserID, f)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := ownership.ParseID(c, "id", "appointment")
	if err != nil {
		return err
	}
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a.ID = aid
	if err := h.svc.Update(c.Request().Context(), id.UserID, &a); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := ownership.ParseID(c, "id", "appointment")
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), aid, id.UserID, req.Status)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := ownership.ParseID(c, "id", "appointment")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), aid, id.UserID); err != nil {
		return toHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
