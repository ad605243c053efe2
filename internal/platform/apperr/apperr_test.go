package apperr

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/platform/chain"
	"github.com/dhanvantari/dhanvantari/internal/platform/lock"
	"github.com/dhanvantari/dhanvantari/internal/platform/validate"
)

func TestHTTP_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", Invalidf("name is required"), http.StatusBadRequest},
		{"field validation", &validate.Error{Fields: map[string]string{"name": "is required"}}, http.StatusBadRequest},
		{"not found", fmt.Errorf("medicine: %w", ErrNotFound), http.StatusNotFound},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("batch owned by another manufacturer: %w", ErrForbidden), http.StatusForbidden},
		{"transition", ErrInvalidTransition, http.StatusConflict},
		{"lock", lock.ErrNotObtained, http.StatusConflict},
		{"wallet", chain.ErrWalletNotConnected, http.StatusPreconditionFailed},
		{"network", &chain.WrongNetworkError{Got: big.NewInt(1), Want: chain.PolygonAmoy}, http.StatusPreconditionFailed},
		{"reverted", chain.ErrReverted, http.StatusBadGateway},
		{"token id", fmt.Errorf("mint: %w", chain.ErrTokenIDNotFound), http.StatusBadGateway},
		{"upstream", ErrUpstream, http.StatusBadGateway},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
		{"echo passthrough", echo.NewHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := HTTP(tt.err)
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
		})
	}
}

func TestHTTP_Nil(t *testing.T) {
	if HTTP(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestHTTP_WrongNetworkBody(t *testing.T) {
	he := HTTP(&chain.WrongNetworkError{Got: big.NewInt(1), Want: chain.PolygonAmoy})
	body, ok := he.Message.(WrongNetworkBody)
	if !ok {
		t.Fatalf("expected WrongNetworkBody, got %T", he.Message)
	}
	if body.Got != "0x1" {
		t.Errorf("expected got 0x1, got %s", body.Got)
	}
	if body.Network.ChainIDHex != "0x13882" {
		t.Errorf("expected amoy params, got %s", body.Network.ChainIDHex)
	}
}

func TestHTTP_UnknownKeepsInternal(t *testing.T) {
	cause := errors.New("boom")
	he := HTTP(cause)
	if he.Internal != cause {
		t.Error("expected cause kept as Internal")
	}
	if he.Message != "internal server error" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestInvalidf_IsValidation(t *testing.T) {
	err := Invalidf("quantity must be between %d and %d", 1, 100)
	if !errors.Is(err, ErrValidation) {
		t.Error("expected errors.Is ErrValidation")
	}
	if err.Error() != "quantity must be between 1 and 100" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
