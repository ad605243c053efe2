package medicine

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/auth"
	"github.com/dhanvantari/dhanvantari/pkg/pagination"
)

type Handler struct {
	svc    *Service
	labels *Labels
}

func NewHandler(svc *Service, labels *Labels) *Handler {
	return &Handler{svc: svc, labels: labels}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/medicines/:id", h.Get)

	mfr := api.Group("/medicines", auth.RequireRole(auth.RoleManufacturer))
	mfr.GET("", h.List)
	mfr.GET("/stats", h.Stats)
	mfr.GET("/:id/units", h.Units)
	mfr.GET("/:id/qr", h.QR)
	mfr.GET("/:id/qr.zip", h.QRZip)
	mfr.POST("/:id/toggle", h.Toggle)
	mfr.POST("/:id/recall", h.Recall)
	mfr.DELETE("/:id", h.Delete)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.List(ctx, account.FromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.Stats(ctx, account.FromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Units(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.WithDefault(c, MaxQuantity)
	ctx := c.Request().Context()
	items, total, err := h.svc.Units(ctx, account.FromContext(ctx), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// QR renders the label of the batch, or of one unit with ?unit=<serial>.
func (h *Handler) QR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	serial := 0
	if raw := c.QueryParam("unit"); raw != "" {
		if serial, err = strconv.Atoi(raw); err != nil || serial < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "unit must be a positive serial number")
		}
	}

	ctx := c.Request().Context()
	m, tokenID, err := h.svc.LabelToken(ctx, account.FromContext(ctx), id, serial)
	if err != nil {
		return apperr.HTTP(err)
	}
	png, err := h.labels.PNG(m.ContractAddress, tokenID, labelSize(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="qr-%s.png"`, tokenID))
	return c.Blob(http.StatusOK, "image/png", png)
}

// QRZip renders every unit label of a batch into one archive.
func (h *Handler) QRZip(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	m, units, err := h.svc.LabelUnits(ctx, account.FromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if len(units) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "batch has no units")
	}
	archive, err := h.labels.Zip(m, units, labelSize(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="batch-%s-qrs.zip"`, m.ID))
	return c.Blob(http.StatusOK, "application/zip", archive)
}

func labelSize(c echo.Context) int {
	size, _ := strconv.Atoi(c.QueryParam("size"))
	return size
}

func (h *Handler) Toggle(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	m, err := h.svc.Toggle(ctx, account.FromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Recall(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	res, err := h.svc.Recall(ctx, account.FromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, account.FromContext(ctx), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
