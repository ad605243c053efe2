package healthrecord

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/auth"
	"github.com/dhanvantari/dhanvantari/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/health-records", auth.RequireAuth())
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.POST("/:id/attachments", h.Upload)
	g.GET("/:id/attachments/:n", h.Download)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.svc.List(ctx, account.FromContext(ctx), c.QueryParam("type"), limit)
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, items)
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
	rec, err := h.svc.Create(ctx, account.FromContext(ctx), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, account.FromContext(ctx), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Upload(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	obj := blobstore.Object{FileName: file.Filename, ContentType: file.Header.Get(echo.HeaderContentType)}
	ctx := c.Request().Context()
	stored, err := h.svc.Attach(ctx, account.FromContext(ctx), id, obj, src)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, stored)
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, blobstore.ErrMissingFileName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return apperr.HTTP(err)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid attachment index")
	}

	ctx := c.Request().Context()
	body, obj, err := h.svc.Attachment(ctx, account.FromContext(ctx), id, n)
	if err != nil {
		return apperr.HTTP(err)
	}
	defer body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+obj.FileName+`"`)
	return c.Stream(http.StatusOK, obj.ContentType, body)
}
