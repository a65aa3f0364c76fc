package calendar

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/ownership"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/calendar", auth.RequireRole(auth.RoleDoctor))
	g.GET("/export", h.Export)
	g.GET("/auth-url", h.AuthURL)
	g.POST("/callback", h.Callback)
	g.GET("/status", h.Status)
	g.DELETE("/link", h.Unlink)
	g.POST("/sync", h.Sync)
	g.DELETE("/sync/:appointmentId", h.Unsync)
}

type CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type SyncRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// toHTTP keeps Google's error text out of responses; the cause is logged
// by the error handler.
func toHTTP(err error) error {
	switch {
	case errors.Is(err, ErrNoAppointments):
		return echo.NewHTTPError(http.StatusNotFound, ErrNoAppointments.Error())
	case errors.Is(err, ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, ErrUpstream.Error()).SetInternal(err)
	case errors.Is(err, ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrNotConfigured.Error())
	case errors.Is(err, ErrNotLinked):
		return echo.NewHTTPError(http.StatusConflict, ErrNotLinked.Error())
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidState.Error())
	}
	return ownership.HTTPError(err, "appointment")
}

// Export serves the doctor's appointments as an .ics file. It accepts the
// same status, patient_id, from and to filters as the appointment list.
func (h *Handler) Export(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	f, err := appointment.FilterFromQuery(c)
	if err != nil {
		return toHTTP(err)
	}
	data, err := h.svc.ExportICS(c.Request().Context(), id.UserID, "Clinic appointments", f)
	if err != nil {
		return toHTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="appointments.ics"`)
	return c.Blob(http.StatusOK, ICSContentType, data)
}

func (h *Handler) AuthURL(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	url, err := h.svc.AuthURL(id.UserID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) Callback(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req CallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}
	st, err := h.svc.Link(c.Request().Context(), id.UserID, req.Code, req.State)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Status(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Status(c.Request().Context(), id.UserID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Unlink(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	if err := h.svc.Unlink(c.Request().Context(), id.UserID); err != nil {
		return toHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Sync(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req SyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AppointmentID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_id is required")
	}
	a, err := h.svc.Sync(c.Request().Context(), id.UserID, req.AppointmentID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Unsync(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := ownership.ParseID(c, "appointmentId", "appointment")
	if err != nil {
		return err
	}
	if err := h.svc.Unsync(c.Request().Context(), id.UserID, aid); err != nil {
		return toHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
