package insight

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/insight")
	g.POST("/ask", h.Ask)
	g.POST("/chat", h.Chat)
}

func (h *Handler) Ask(c echo.Context) error {
	var q Query
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&q); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, h.svc.Ask(c.Request().Context(), q))
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ans, err := h.svc.Chat(c.Request().Context(), req.Message)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ans)
}
