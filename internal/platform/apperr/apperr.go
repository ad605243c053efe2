// Package apperr holds the error kinds shared by all services and their
// translation to HTTP responses.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/platform/chain"
	"github.com/dhanvantari/dhanvantari/internal/platform/lock"
	"github.com/dhanvantari/dhanvantari/internal/platform/validate"
)

var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrUpstream          = errors.New("upstream service failed")
)

type invalid struct{ msg string }

func (e *invalid) Error() string        { return e.msg }
func (e *invalid) Is(target error) bool { return target == ErrValidation }

// Invalidf returns a validation error whose message is shown to the caller
// verbatim.
func Invalidf(format string, args ...interface{}) error {
	return &invalid{msg: fmt.Sprintf(format, args...)}
}

// WrongNetworkBody is returned with 412 so the client can offer to add or
// switch the network.
type WrongNetworkBody struct {
	Message string        `json:"message"`
	Got     string        `json:"got_chain_id,omitempty"`
	Network chain.Network `json:"network"`
}

// HTTP maps err to an echo HTTP error. Errors of unknown kind become 500
// and keep the cause as Internal so the logger records it.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var verr *validate.Error
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
			"message": "validation failed",
			"fields":  verr.Fields,
		})
	}

	var wrong *chain.WrongNetworkError
	if errors.As(err, &wrong) {
		body := WrongNetworkBody{Message: wrong.Error(), Network: wrong.Want}
		if wrong.Got != nil {
			body.Got = fmt.Sprintf("0x%x", wrong.Got)
		}
		return echo.NewHTTPError(http.StatusPreconditionFailed, body)
	}

	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict), errors.Is(err, lock.ErrNotObtained):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, chain.ErrWalletNotConnected), errors.Is(err, chain.ErrWrongNetwork):
		return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, chain.ErrReverted), errors.Is(err, chain.ErrTokenIDNotFound),
		errors.Is(err, ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
