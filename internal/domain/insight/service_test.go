package insight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/cache"
)

func completionServer(t *testing.T, reply string, status int, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != DefaultModel || req.MaxTokens != DefaultMaxTokens {
			t.Errorf("unexpected model/max_tokens %s/%d", req.Model, req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleQuery() Query {
	return Query{Name: "Paracetamol", Manufacturer: "Cipla", Details: "Batch B100"}
}

func TestPrompt(t *testing.T) {
	p := sampleQuery().Prompt()
	for _, want := range []string{"Name: Paracetamol", "Manufacturer: Cipla", "Additional Details: Batch B100", "under 150 words"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(Query{Name: "X", Manufacturer: "Y"}.Prompt(), "Additional Details: None") {
		t.Error("expected None for empty details")
	}
}

func TestQueryFor(t *testing.T) {
	m := &medicine.Medicine{
		Name: "Amoxicillin", ManufacturerName: "Sun", BatchNumber: "B7", MedicineType: "capsule",
		ManufacturingDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		ExpiryDate:        time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	q := QueryFor(m)
	if q.Name != "Amoxicillin" || q.Manufacturer != "Sun" {
		t.Errorf("unexpected query %+v", q)
	}
	if !strings.Contains(q.Details, "Batch B7") || !strings.Contains(q.Details, "expires 2026-01-02") {
		t.Errorf("unexpected details %q", q.Details)
	}
}

func TestAsk_Completion(t *testing.T) {
	srv := completionServer(t, "  Looks genuine.  ", http.StatusOK, nil)
	svc := NewService(NewCompletionBackend(srv.URL, "sk-test", "", time.Second), nil, 0)

	ans := svc.Ask(context.Background(), sampleQuery())
	if ans.Fallback || ans.Text != "Looks genuine." {
		t.Errorf("unexpected answer %+v", ans)
	}
}

func TestAsk_FallbackOnServerError(t *testing.T) {
	srv := completionServer(t, "ignored", http.StatusInternalServerError, nil)
	svc := NewService(NewCompletionBackend(srv.URL, "sk-test", "", time.Second), nil, 0)

	ans := svc.Ask(context.Background(), sampleQuery())
	if !ans.Fallback || ans.Text != Fallback {
		t.Errorf("expected fallback, got %+v", ans)
	}
}

func TestAsk_FallbackOnEmptyChoices(t *testing.T) {
	srv := completionServer(t, "   ", http.StatusOK, nil)
	svc := NewService(NewCompletionBackend(srv.URL, "sk-test", "", time.Second), nil, 0)
	if ans := svc.Ask(context.Background(), sampleQuery()); !ans.Fallback {
		t.Errorf("expected fallback on empty content, got %+v", ans)
	}
}

func TestAsk_FallbackOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	svc := NewService(NewCompletionBackend(srv.URL, "", "", 20*time.Millisecond), nil, 0)
	if ans := svc.Ask(context.Background(), sampleQuery()); !ans.Fallback {
		t.Errorf("expected fallback on timeout, got %+v", ans)
	}
}

func TestAsk_CachesRealReplies(t *testing.T) {
	var hits int32
	srv := completionServer(t, "Safe to use.", http.StatusOK, &hits)
	svc := NewService(NewCompletionBackend(srv.URL, "sk-test", "", time.Second), cache.NewMemoryStore(), time.Hour)
	ctx := context.Background()

	first := svc.Ask(ctx, sampleQuery())
	second := svc.Ask(ctx, sampleQuery())
	if first.Cached || !second.Cached {
		t.Errorf("expected second answer cached, got %+v then %+v", first, second)
	}
	if second.Text != "Safe to use." {
		t.Errorf("unexpected cached text %q", second.Text)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected one backend call, got %d", hits)
	}
}

func TestAsk_FallbackNotCached(t *testing.T) {
	store := cache.NewMemoryStore()
	svc := NewService(NoBackend{}, store, time.Hour)
	svc.Ask(context.Background(), sampleQuery())
	if _, err := store.Get(context.Background(), sampleQuery().cacheKey()); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("expected fallback not cached, got %v", err)
	}
}

func TestWebhook_JSONAndPlainReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		ctype string
		want  string
	}{
		{"json", `{"message":"Hello from workflow"}`, "application/json", "Hello from workflow"},
		{"plain", "plain text answer", "text/plain", "plain text answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if body["message"] != "is this safe?" {
					t.Errorf("unexpected webhook body %v", body)
				}
				w.Header().Set("Content-Type", tt.ctype)
				w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			got, err := NewWebhookBackend(srv.URL, time.Second).Complete(context.Background(), "is this safe?")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWebhook_MissingMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reply":"wrong field"}`))
	}))
	defer srv.Close()
	if _, err := NewWebhookBackend(srv.URL, time.Second).Complete(context.Background(), "hi"); err == nil {
		t.Error("expected error for reply without message")
	}
}

func TestChat(t *testing.T) {
	svc := NewService(NoBackend{}, nil, 0)
	ans, err := svc.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ans.Fallback || ans.Text != ChatFallback {
		t.Errorf("expected chat fallback, got %+v", ans)
	}
	if _, err := svc.Chat(context.Background(), "   "); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.Chat(context.Background(), strings.Repeat("a", maxChatLength+1)); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for long message, got %v", err)
	}
}
