package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
)

func newTestHandler() (*Handler, *mockScanRepo, *echo.Echo) {
	repo := newMockScanRepo()
	return NewHandler(NewService(repo)), repo, echo.New()
}

func TestHandler_History(t *testing.T) {
	h, repo, e := newTestHandler()
	acc := &account.Account{ID: uuid.New()}
	repo.Create(context.Background(), scanFor(acc.ID, VerdictGenuine, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/scans", nil)
	req = req.WithContext(account.WithAccount(req.Context(), acc))
	rec := httptest.NewRecorder()
	if err := h.History(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected total 1, got %s", rec.Body.String())
	}
}

func TestHandler_History_Anonymous(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/scans", nil)
	err := h.History(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	acc := &account.Account{ID: uuid.New()}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(account.WithAccount(req.Context(), acc))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
