package prescription

import (
	"errors"
	"net/http"
	"strconv"

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
	g := api.Group("/prescriptions", auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.ListPrescriptions)
	g.POST("", h.CreatePrescription)
	g.GET("/:id", h.GetPrescription)
	g.PUT("/:id", h.UpdatePrescription)
	g.DELETE("/:id", h.DeletePrescription)
}

func toHTTP(err error) error {
	if errors.Is(err, ErrPatientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return ownership.HTTPError(err, "prescription")
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var rx Prescription
	if err := c.Bind(&rx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), id.UserID, &rx); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, rx)
}

// GetPrescription reports a prescription of another doctor's patient as
// missing, like every other resource.
func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	rid, err := ownership.ParseID(c, "id", "prescription")
	if err != nil {
		return err
	}
	rx, err := h.svc.Get(c.Request().Context(), rid, id.UserID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, rx)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{Limit: pg.Limit, Offset: pg.Offset}
	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return toHTTP(ownership.Invalid("patient_id", "is not a valid id"))
		}
		f.PatientID = &pid
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return toHTTP(ownership.Invalid("active", "must be true or false"))
		}
		f.Active = &active
	}

	items, total, err := h.svc.List(c.Request().Context(), id.UserID, f)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePrescription(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	rid, err := ownership.ParseID(c, "id", "prescription")
	if err != nil {
		return err
	}
	var rx Prescription
	if err := c.Bind(&rx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rx.ID = rid
	if err := h.svc.Update(c.Request().Context(), id.UserID, &rx); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, rx)
}

func (h *Handler) DeletePrescription(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	rid, err := ownership.ParseID(c, "id", "prescription")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), rid, id.UserID); err != nil {
		return toHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
