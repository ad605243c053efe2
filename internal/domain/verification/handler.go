package verification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the verification endpoints. They accept anonymous
// callers; scans are attributed when an account is present.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/verify", h.Verify)
	api.GET("/verify", h.VerifyToken)
}

type verifyRequest struct {
	Payload    string `json:"payload" validate:"required"`
	Location   string `json:"location" validate:"max=200"`
	DeviceInfo string `json:"device_info" validate:"max=500"`
	AskAI      bool   `json:"ask_ai"`
}

func (h *Handler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.HTTP(err)
	}

	ctx := c.Request().Context()
	meta := Meta{Account: account.FromContext(ctx), Location: req.Location, DeviceInfo: req.DeviceInfo}
	res, err := h.svc.Verify(ctx, req.Payload, meta, req.AskAI)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) VerifyToken(c echo.Context) error {
	askAI, _ := strconv.ParseBool(c.QueryParam("ask_ai"))
	ctx := c.Request().Context()
	meta := Meta{
		Account:    account.FromContext(ctx),
		Location:   c.QueryParam("location"),
		DeviceInfo: c.Request().UserAgent(),
	}
	res, err := h.svc.VerifyToken(ctx, c.QueryParam("contract"), c.QueryParam("tokenId"), meta, askAI)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}
