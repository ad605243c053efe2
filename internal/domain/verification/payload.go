package verification

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

type PayloadKind string

const (
	KindRedirect   PayloadKind = "redirect"
	KindStructured PayloadKind = "structured"
	KindBare       PayloadKind = "bare"
	KindToken      PayloadKind = "token"
)

// Payload is a classified QR or manual-entry string.
type Payload struct {
	Kind PayloadKind `json:"kind"`
	Raw  string      `json:"raw"`

	RedirectURL string `json:"redirect_url,omitempty"`
	Contract    string `json:"contract,omitempty"`
	TokenID     string `json:"token_id,omitempty"`
	Batch       string `json:"batch,omitempty"`
	ID          string `json:"id,omitempty"`
}

// Key is the identifier used for token lookups: tokenId, then id for JSON
// payloads, the whole string for bare keys.
func (p Payload) Key() string {
	switch p.Kind {
	case KindStructured, KindToken:
		if p.TokenID != "" {
			return p.TokenID
		}
		return p.ID
	case KindBare:
		return p.Raw
	}
	return ""
}

// Classify trims raw and decides how it should be resolved.
func Classify(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, apperr.Invalidf("payload is required")
	}

	if p, ok := classifyURL(raw); ok {
		return p, nil
	}
	if p, ok := classifyJSON(raw); ok {
		return p, nil
	}
	return Payload{Kind: KindBare, Raw: raw}, nil
}

func classifyURL(raw string) (Payload, bool) {
	if !strings.Contains(raw, "/verify") {
		return Payload{}, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Payload{}, false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return Payload{}, false
	}
	if !strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/verify") {
		return Payload{}, false
	}
	q := u.Query()
	token := q.Get("tokenId")
	if token == "" {
		return Payload{}, false
	}
	return Payload{
		Kind:        KindRedirect,
		Raw:         raw,
		RedirectURL: raw,
		Contract:    q.Get("contract"),
		TokenID:     token,
	}, true
}

func classifyJSON(raw string) (Payload, bool) {
	if !strings.HasPrefix(raw, "{") {
		return Payload{}, false
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Payload{}, false
	}
	p := Payload{
		Kind:     KindStructured,
		Raw:      raw,
		ID:       field(doc, "id"),
		TokenID:  field(doc, "tokenId"),
		Batch:    field(doc, "batch"),
		Contract: field(doc, "contract"),
	}
	if p.ID == "" && p.TokenID == "" && p.Batch == "" && p.Contract == "" {
		return Payload{}, false
	}
	return p, true
}

// field reads a string or numeric member. Token ids are often emitted as
// JSON numbers.
func field(doc map[string]interface{}, key string) string {
	switch v := doc[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
