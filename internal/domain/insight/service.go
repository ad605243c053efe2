// Package insight asks an external model for a consumer-facing safety
// summary of a scanned medicine. Every failure degrades to a fixed reply.
package insight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/internal/platform/cache"
)

const (
	Fallback     = "Unable to verify with AI at this time."
	ChatFallback = "⚠️ The assistant is temporarily unavailable. Please try again."

	maxChatLength = 2000
)

// Query describes the medicine being asked about.
type Query struct {
	Name         string `json:"medicine_name" validate:"required"`
	Manufacturer string `json:"manufacturer" validate:"required"`
	Details      string `json:"details"`
}

// QueryFor builds a query from a stored batch.
func QueryFor(m *medicine.Medicine) Query {
	return Query{
		Name:         m.Name,
		Manufacturer: m.ManufacturerName,
		Details: fmt.Sprintf("Batch %s, %s, manufactured %s, expires %s",
			m.BatchNumber, m.MedicineType,
			m.ManufacturingDate.Format(medicine.DateLayout), m.ExpiryDate.Format(medicine.DateLayout)),
	}
}

// Prompt renders the safety-analysis prompt.
func (q Query) Prompt() string {
	details := q.Details
	if details == "" {
		details = "None"
	}
	var b strings.Builder
	b.WriteString("I have scanned a medicine with the following details:\n")
	fmt.Fprintf(&b, "Name: %s\n", q.Name)
	fmt.Fprintf(&b, "Manufacturer: %s\n", q.Manufacturer)
	fmt.Fprintf(&b, "Additional Details: %s\n\n", details)
	b.WriteString("Please provide a brief safety analysis and verification summary.\n")
	b.WriteString("Is this a known manufacturer? What should I check on the packaging to ensure authenticity?\n")
	b.WriteString("Keep the response concise (under 150 words) and helpful for a consumer.")
	return b.String()
}

func (q Query) cacheKey() string {
	sum := sha256.Sum256([]byte(strings.ToLower(q.Name + "\x00" + q.Manufacturer + "\x00" + q.Details)))
	return "ask:" + hex.EncodeToString(sum[:8])
}

// Answer is the reply shown to the user.
type Answer struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Cached   bool   `json:"cached"`
}

type Service struct {
	backend Backend
	cache   cache.Store
	ttl     time.Duration
}

// NewService builds the adapter. A nil store disables caching.
func NewService(backend Backend, store cache.Store, ttl time.Duration) *Service {
	if backend == nil {
		backend = NoBackend{}
	}
	return &Service{backend: backend, cache: store, ttl: ttl}
}

// Ask never fails: backend errors return Fallback. Only real replies are cached.
func (s *Service) Ask(ctx context.Context, q Query) Answer {
	log := zerolog.Ctx(ctx)
	key := q.cacheKey()
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, key); err == nil {
			return Answer{Text: v, Cached: true}
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Msg("insight cache read")
		}
	}

	text, err := s.backend.Complete(ctx, q.Prompt())
	if err != nil {
		log.Warn().Err(err).Str("medicine", q.Name).Msg("insight backend failed")
		return Answer{Text: Fallback, Fallback: true}
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, text, s.ttl); err != nil {
			log.Warn().Err(err).Msg("insight cache write")
		}
	}
	return Answer{Text: text}
}

func (s *Service) AskMedicine(ctx context.Context, m *medicine.Medicine) Answer {
	return s.Ask(ctx, QueryFor(m))
}

// Chat forwards free text to the backend without caching.
func (s *Service) Chat(ctx context.Context, message string) (Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Answer{}, apperr.Invalidf("message is required")
	}
	if len(message) > maxChatLength {
		return Answer{}, apperr.Invalidf("message must be at most %d characters", maxChatLength)
	}
	text, err := s.backend.Complete(ctx, message)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("insight chat failed")
		return Answer{Text: ChatFallback, Fallback: true}, nil
	}
	return Answer{Text: text}, nil
}
