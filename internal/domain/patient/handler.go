package patient

import (
	"fmt"
	"net/http"
	"time"

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
	g := api.Group("/patients", auth.RequireRole(auth.RoleDoctor))
	g.GET("", h.ListPatients)
	g.POST("", h.CreatePatient)
	g.GET("/export", h.ExportPatients)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.DELETE("/:id", h.DeletePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), id.UserID, &p); err != nil {
		return ownership.HTTPError(err, "patient")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := ownership.ParseID(c, "id", "patient")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), pid, id.UserID)
	if err != nil {
		return ownership.HTTPError(err, "patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), id.UserID, ListFilter{
		Search: c.QueryParam("search"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := ownership.ParseID(c, "id", "patient")
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = pid
	if err := h.svc.Update(c.Request().Context(), id.UserID, &p); err != nil {
		return ownership.HTTPError(err, "patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := ownership.ParseID(c, "id", "patient")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), pid, id.UserID); err != nil {
		return ownership.HTTPError(err, "patient")
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportPatients downloads the doctor's patients, optionally filtered by
// search, as an XLSX workbook.
func (h *Handler) ExportPatients(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.All(c.Request().Context(), id.UserID, c.QueryParam("search"))
	if err != nil {
		return err
	}
	data, err := Export(patients)
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("patients-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, ExportContentType, data)
}
