package minting

import (
	"errors"
	"net/http"
	"strconv"

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
	api.GET("/chain/network", h.Network)

	mfr := api.Group("/medicines", auth.RequireRole(auth.RoleManufacturer))
	mfr.POST("/mint", h.Mint)
	mfr.POST("/confirm", h.Confirm)

	admin := api.Group("/mint-anomalies", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.ListAnomalies)
	admin.POST("/:id/resolve", h.ResolveAnomaly)
}

// Network returns the wallet_addEthereumChain parameters of the mint network.
func (h *Handler) Network(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Network())
}

func (h *Handler) Mint(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTP(err)
	}

	ctx := c.Request().Context()
	res, err := h.svc.Mint(ctx, account.FromContext(ctx), req)
	if err != nil {
		return mintError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

type confirmRequest struct {
	TransactionHash string       `json:"transaction_hash" validate:"required"`
	Batch           BatchRequest `json:"batch"`
}

func (h *Handler) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTP(err)
	}

	ctx := c.Request().Context()
	res, err := h.svc.Confirm(ctx, account.FromContext(ctx), req.TransactionHash, req.Batch)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}

// mintError adds the transaction hash to unconfirmed mints so the client
// can retry through /medicines/confirm.
func mintError(err error) error {
	var ue *UnconfirmedError
	if errors.As(err, &ue) {
		return echo.NewHTTPError(http.StatusBadGateway, map[string]string{
			"message":          ue.Error(),
			"transaction_hash": ue.TransactionHash,
		}).SetInternal(err)
	}
	return apperr.HTTP(err)
}

func (h *Handler) ListAnomalies(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit > 100 {
		limit = 100
	}
	unresolved, _ := strconv.ParseBool(c.QueryParam("unresolved"))
	items, err := h.svc.Anomalies(c.Request().Context(), unresolved, limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Anomaly{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ResolveAnomaly(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.ResolveAnomaly(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
