package prescription

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/prescriptions", auth.RequireAuth())
	g.GET("", h.ListMine)
	g.GET("/code/:code", h.ByCode)
	g.GET("/:id", h.Get)

	g.GET("/issued", h.ListIssued, auth.RequireRole(auth.RoleDoctor))
	g.POST("", h.Create, auth.RequireRole(auth.RoleDoctor))

	g.PATCH("/:id/status", h.UpdateStatus, auth.RequireRole(auth.RoleDoctor, auth.RolePharmacist))
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active completed cancelled"`
}

func (h *Handler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListAsPatient(ctx, account.FromContext(ctx), c.QueryParam("status"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, orEmpty(items))
}

func (h *Handler) ListIssued(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListAsDoctor(ctx, account.FromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, orEmpty(items))
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&in); err != nil {
		return apperr.HTTP(err)
	}

	ctx := c.Request().Context()
	p, err := h.svc.Create(ctx, account.FromContext(ctx), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, account.FromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ByCode(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.ByCode(ctx, account.FromContext(ctx), c.Param("code"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTP(err)
	}

	ctx := c.Request().Context()
	p, err := h.svc.UpdateStatus(ctx, account.FromContext(ctx), id, req.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func orEmpty(items []*Prescription) []*Prescription {
	if items == nil {
		return []*Prescription{}
	}
	return items
}
