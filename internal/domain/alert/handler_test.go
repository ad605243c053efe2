package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
)

func newTestHandler() (*Handler, *account.Account, *echo.Echo) {
	svc, _, _, acc := newTestService()
	return NewHandler(svc), acc, echo.New()
}

func asAccount(req *http.Request, a *account.Account) *http.Request {
	return req.WithContext(account.WithAccount(req.Context(), a))
}

func TestHandler_ListAndUnreadCount(t *testing.T) {
	h, acc, e := newTestHandler()
	for i := 0; i < 2; i++ {
		h.svc.Create(context.Background(), sampleAlert(acc.ID))
	}

	req := asAccount(httptest.NewRequest(http.MethodGet, "/alerts?limit=1", nil), acc)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Alert
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 1 {
		t.Errorf("expected 1 alert, got %d", len(items))
	}

	req = asAccount(httptest.NewRequest(http.MethodGet, "/alerts/unread-count", nil), acc)
	rec = httptest.NewRecorder()
	if err := h.UnreadCount(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"unread":2`) {
		t.Errorf("expected unread 2, got %s", rec.Body.String())
	}
}

func TestHandler_List_InvalidLimit(t *testing.T) {
	h, acc, e := newTestHandler()
	req := asAccount(httptest.NewRequest(http.MethodGet, "/alerts?limit=abc", nil), acc)
	err := h.List(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_MarkRead_Forbidden(t *testing.T) {
	h, acc, e := newTestHandler()
	a := sampleAlert(acc.ID)
	h.svc.Create(context.Background(), a)

	stranger := &account.Account{Role: "user"}
	req := asAccount(httptest.NewRequest(http.MethodPost, "/", nil), stranger)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	err := h.MarkRead(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_MarkAllRead(t *testing.T) {
	h, acc, e := newTestHandler()
	for i := 0; i < 3; i++ {
		h.svc.Create(context.Background(), sampleAlert(acc.ID))
	}
	req := asAccount(httptest.NewRequest(http.MethodPost, "/alerts/read-all", nil), acc)
	rec := httptest.NewRecorder()
	if err := h.MarkAllRead(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"updated":3`) {
		t.Errorf("expected 3 updated, got %s", rec.Body.String())
	}
}

func TestHandler_Create(t *testing.T) {
	h, acc, e := newTestHandler()
	body := `{"account_id":"` + acc.ID.String() + `","type":"expiry_warning","title":"Expiring","message":"Batch B1 expires soon"}`
	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Create_BadType(t *testing.T) {
	h, acc, e := newTestHandler()
	body := `{"account_id":"` + acc.ID.String() + `","type":"nope","title":"x","message":"y"}`
	req := httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
