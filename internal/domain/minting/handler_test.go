package minting

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/chain"
	"github.com/dhanvantari/dhanvantari/internal/platform/validate"
)

const mintBody = `{"name":"Paracetamol","batch_number":"B100","medicine_type":"tablet",
	"manufacturing_date":"2024-01-01","expiry_date":"2099-01-01","price":"25.50","quantity":3}`

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	e := echo.New()
	e.Validator = validate.New()
	return NewHandler(f.svc), f, e
}

func jsonRequest(method, body string, a *account.Account) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if a != nil {
		req = req.WithContext(account.WithAccount(req.Context(), a))
	}
	return req
}

func TestHandler_Mint(t *testing.T) {
	h, f, e := newTestHandler()
	rec := httptest.NewRecorder()
	if err := h.Mint(e.NewContext(jsonRequest(http.MethodPost, mintBody, f.mfr), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.State != StateSuccess || len(res.Units) != 3 || res.Medicine.TokenID != "T1" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandler_Mint_Invalid(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"name":"Paracetamol","batch_number":"B100","medicine_type":"gummy",
		"manufacturing_date":"2024-01-01","expiry_date":"2099-01-01","quantity":300}`
	err := h.Mint(e.NewContext(jsonRequest(http.MethodPost, body, f.mfr), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if f.chain.submitted() != 0 {
		t.Error("expected nothing submitted")
	}
}

func TestHandler_Mint_WrongNetwork(t *testing.T) {
	h, f, e := newTestHandler()
	f.chain.netErr = &chain.WrongNetworkError{Got: big.NewInt(1), Want: chain.PolygonAmoy}
	err := h.Mint(e.NewContext(jsonRequest(http.MethodPost, mintBody, f.mfr), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %v", err)
	}
	b, _ := json.Marshal(he.Message)
	if !strings.Contains(string(b), `"chainId":"0x13882"`) {
		t.Errorf("expected add-network parameters, got %s", b)
	}
}

func TestHandler_Mint_TokenIDMissing(t *testing.T) {
	h, f, e := newTestHandler()
	f.chain.tokenErr = chain.ErrTokenIDNotFound
	err := h.Mint(e.NewContext(jsonRequest(http.MethodPost, mintBody, f.mfr), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestHandler_Mint_Unconfirmed(t *testing.T) {
	h, f, e := newTestHandler()
	f.chain.waitErr = errRPC
	err := h.Mint(e.NewContext(jsonRequest(http.MethodPost, mintBody, f.mfr), httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	body, _ := he.Message.(map[string]string)
	if body["transaction_hash"] != submitHash.Hex() {
		t.Errorf("expected tx hash in body, got %v", he.Message)
	}
}

func TestHandler_Confirm(t *testing.T) {
	h, f, e := newTestHandler()
	f.chain.event = confirmedEvent(uuid.New())
	body := `{"transaction_hash":"0x` + strings.Repeat("ef", 32) + `","batch":` + mintBody + `}`
	rec := httptest.NewRecorder()
	if err := h.Confirm(e.NewContext(jsonRequest(http.MethodPost, body, f.mfr), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Network(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	if err := h.Network(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"chainName":"Polygon Amoy Testnet"`) || !strings.Contains(body, `"blockExplorerUrls"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestHandler_ResolveAnomaly_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	err := h.ResolveAnomaly(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
