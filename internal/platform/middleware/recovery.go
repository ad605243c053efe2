package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

const stackSize = 8 << 10

// Recovery turns a handler panic into a 500 that carries the request id.
// The panic is logged on the request-scoped logger when Logger has already
// attached one, otherwise on logger. http.ErrAbortHandler is re-raised so
// net/http can abort the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]

				rid, _ := c.Get("request_id").(string)
				l := requestLogger(c, logger)
				l.Error().
					Err(cause).
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = recovered(cause, rid)
			}()
			return next(c)
		}
	}
}

// recovered keeps the status of a panicked HTTP error or app error and
// hides everything else behind a generic 500.
func recovered(cause error, rid string) *echo.HTTPError {
	he := apperr.HTTP(cause)
	var orig *echo.HTTPError
	if he.Code < http.StatusInternalServerError || errors.As(cause, &orig) {
		return he
	}
	return echo.NewHTTPError(http.StatusInternalServerError, map[string]string{
		"message":    "internal server error",
		"request_id": rid,
	}).SetInternal(cause)
}

func requestLogger(c echo.Context, fallback zerolog.Logger) *zerolog.Logger {
	l := zerolog.Ctx(c.Request().Context())
	if l.GetLevel() == zerolog.Disabled || l == zerolog.DefaultContextLogger {
		return &fallback
	}
	return l
}
