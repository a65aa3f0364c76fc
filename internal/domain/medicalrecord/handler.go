package medicalrecord

import (
	"errors"
	"net/http"

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
	g := api.Group("/medical-records", auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.ListRecords)
	g.POST("", h.CreateRecord)
	g.GET("/:id", h.GetRecord)
	g.PUT("/:id", h.UpdateRecord)
	g.DELETE("/:id", h.DeleteRecord)
}

func toHTTP(err error) error {
	if errors.Is(err, ErrPatientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return ownership.HTTPError(err, "medical record")
}

func (h *Handler) CreateRecord(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var r Record
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), id.UserID, &r); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRecord(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	rid, err := ownership.ParseID(c, "id", "medical record")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), rid, id.UserID)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRecords(c echo.Context) error {
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

	items, total, err := h.svc.List(c.Request().Context(), id.UserID, f)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateRecord(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	rid, err := ownership.ParseID(c, "id", "medical record")
	if err != nil {
		return err
	}
	var r Record
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r.ID = rid
	if err := h.svc.Update(c.Request().Context(), id.UserID, &r); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	rid, err := ownership.ParseID(c, "id", "medical record")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), rid, id.UserID); err != nil {
		return toHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
