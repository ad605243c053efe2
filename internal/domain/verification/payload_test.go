package verification

import (
	"errors"
	"testing"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  PayloadKind
		key   string
		batch string
	}{
		{"verify url", "https://dhanvantari.app/verify?contract=0xabc&tokenId=7", KindRedirect, "", ""},
		{"verify url trailing slash", "https://dhanvantari.app/verify/?tokenId=7", KindRedirect, "", ""},
		{"relative verify url", "/verify?tokenId=9", KindRedirect, "", ""},
		{"verify url without token", "https://dhanvantari.app/verify?contract=0xabc", KindBare, "https://dhanvantari.app/verify?contract=0xabc", ""},
		{"other url", "https://example.com/products/7", KindBare, "https://example.com/products/7", ""},
		{"json token", `{"contract":"0xabc","tokenId":"T1","batch":"B100"}`, KindStructured, "T1", "B100"},
		{"json id", `{"id":"T1-2"}`, KindStructured, "T1-2", ""},
		{"json numeric token", `{"tokenId":42}`, KindStructured, "42", ""},
		{"json batch only", `{"batch":"B100"}`, KindStructured, "", "B100"},
		{"json unrelated", `{"foo":"bar"}`, KindBare, `{"foo":"bar"}`, ""},
		{"broken json", `{"id":`, KindBare, `{"id":`, ""},
		{"bare", "  XYZ-000 \n", KindBare, "XYZ-000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Kind != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, p.Kind)
			}
			if p.Key() != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, p.Key())
			}
			if p.Batch != tt.batch {
				t.Errorf("expected batch %q, got %q", tt.batch, p.Batch)
			}
		})
	}
}

func TestClassify_RedirectFields(t *testing.T) {
	p, _ := Classify("https://dhanvantari.app/verify?contract=0xabc&tokenId=7")
	if p.Contract != "0xabc" || p.TokenID != "7" || p.RedirectURL == "" {
		t.Errorf("unexpected redirect payload %+v", p)
	}
}

func TestClassify_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		if _, err := Classify(raw); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", raw, err)
		}
	}
}
