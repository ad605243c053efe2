package verification

import (
	"context"
	"fmt"

	"github.com/dhanvantari/dhanvantari/internal/domain/insight"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

// Advisor produces the optional AI follow-up for a resolution.
type Advisor interface {
	Ask(ctx context.Context, q insight.Query) insight.Answer
	AskMedicine(ctx context.Context, m *medicine.Medicine) insight.Answer
}

// Service runs one verification session through its flow: resolve, then
// optionally ask the advisor.
type Service struct {
	resolver *Resolver
	advisor  Advisor
}

// NewService builds the service. A nil advisor rejects AI follow-ups.
func NewService(resolver *Resolver, advisor Advisor) *Service {
	return &Service{resolver: resolver, advisor: advisor}
}

func (s *Service) Verify(ctx context.Context, raw string, meta Meta, askAI bool) (*Resolution, error) {
	flow := NewFlow()
	res, err := s.resolver.resolve(ctx, flow, raw, meta)
	if err != nil {
		return nil, err
	}
	if askAI {
		return s.explain(ctx, flow, res)
	}
	return res, nil
}

func (s *Service) VerifyToken(ctx context.Context, contract, tokenID string, meta Meta, askAI bool) (*Resolution, error) {
	flow := NewFlow()
	res, err := s.resolver.resolveToken(ctx, flow, contract, tokenID, meta)
	if err != nil {
		return nil, err
	}
	if askAI {
		return s.explain(ctx, flow, res)
	}
	return res, nil
}

// explain asks the advisor about the matched batch, or about the raw text
// when nothing matched.
func (s *Service) explain(ctx context.Context, flow *Flow, res *Resolution) (*Resolution, error) {
	if s.advisor == nil {
		return nil, fmt.Errorf("ai insight is not configured: %w", apperr.ErrUpstream)
	}
	if err := flow.AskAI(); err != nil {
		return nil, err
	}

	var ans insight.Answer
	if res.Medicine != nil {
		ans = s.advisor.AskMedicine(ctx, res.Medicine)
	} else {
		ans = s.advisor.Ask(ctx, insight.Query{
			Name:         res.Payload.Raw,
			Manufacturer: "Unknown",
			Details:      "No matching record was found for this code.",
		})
	}
	if err := flow.AIAnswered(); err != nil {
		return nil, err
	}
	res.Insight = &ans
	res.State = flow.State()
	return res, nil
}
