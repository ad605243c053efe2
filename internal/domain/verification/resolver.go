package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/domain/insight"
	"github.com/dhanvantari/dhanvantari/internal/domain/medicine"
	"github.com/dhanvantari/dhanvantari/internal/domain/scan"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
)

// LookupErrorText is the detected text of scans whose lookup failed.
const LookupErrorText = "lookup_error"

// Recorder persists scan rows without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, s *scan.Scan)
}

// Meta carries the caller context stored with each scan.
type Meta struct {
	Account    *account.Account
	Location   string
	DeviceInfo string
}

// Resolution is the outcome returned to the client.
type Resolution struct {
	Payload  Payload            `json:"payload"`
	Result   scan.Result        `json:"result"`
	State    State              `json:"state"`
	Medicine *medicine.Medicine `json:"medicine,omitempty"`
	Unit     *medicine.Unit     `json:"unit,omitempty"`
	Insight  *insight.Answer    `json:"insight,omitempty"`
}

type Resolver struct {
	medicines medicine.Repository
	units     medicine.UnitRepository
	recorder  Recorder
	now       func() time.Time
}

func NewResolver(medicines medicine.Repository, units medicine.UnitRepository, recorder Recorder) *Resolver {
	return &Resolver{medicines: medicines, units: units, recorder: recorder, now: time.Now}
}

// Verdict classifies a found batch. Recall and deactivation win over expiry.
func Verdict(m *medicine.Medicine, now time.Time) scan.Verdict {
	switch {
	case m == nil:
		return scan.VerdictUnknown
	case m.IsRecalled || !m.IsActive:
		return scan.VerdictRecalled
	case m.ExpiredAt(now):
		return scan.VerdictExpired
	}
	return scan.VerdictGenuine
}

// Resolve classifies raw and looks it up. Verification URLs come back as
// redirects without a lookup; the redirect target resolves the token and
// records the scan.
func (r *Resolver) Resolve(ctx context.Context, raw string, meta Meta) (*Resolution, error) {
	return r.resolve(ctx, NewFlow(), raw, meta)
}

// ResolveToken resolves a verification URL's contract and tokenId.
func (r *Resolver) ResolveToken(ctx context.Context, contract, tokenID string, meta Meta) (*Resolution, error) {
	return r.resolveToken(ctx, NewFlow(), contract, tokenID, meta)
}

func (r *Resolver) resolve(ctx context.Context, flow *Flow, raw string, meta Meta) (*Resolution, error) {
	p, err := Classify(raw)
	if err != nil {
		return nil, err
	}
	if err := flow.StartScan(); err != nil {
		return nil, err
	}
	if p.Kind == KindRedirect {
		return &Resolution{Payload: p, State: flow.State()}, nil
	}

	m, u, err := r.lookup(ctx, p)
	if err != nil {
		r.recordFailure(ctx, p, meta, err)
		return nil, err
	}
	return r.finish(ctx, flow, p, m, u, meta)
}

func (r *Resolver) resolveToken(ctx context.Context, flow *Flow, contract, tokenID string, meta Meta) (*Resolution, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, apperr.Invalidf("tokenId is required")
	}
	p := Payload{Kind: KindToken, Raw: tokenID, Contract: strings.TrimSpace(contract), TokenID: tokenID}

	if err := flow.StartScan(); err != nil {
		return nil, err
	}
	m, u, err := r.byToken(ctx, tokenID)
	if err != nil {
		r.recordFailure(ctx, p, meta, err)
		return nil, err
	}
	return r.finish(ctx, flow, p, m, u, meta)
}

func (r *Resolver) finish(ctx context.Context, flow *Flow, p Payload, m *medicine.Medicine, u *medicine.Unit, meta Meta) (*Resolution, error) {
	if m != nil && p.Contract != "" && !strings.EqualFold(p.Contract, m.ContractAddress) {
		m, u = nil, nil
	}

	name := ""
	if m != nil {
		name = m.Name
	}
	result := scan.NewResult(Verdict(m, r.now()), name, p.Raw)
	if err := flow.Resolved(result); err != nil {
		return nil, err
	}

	r.record(ctx, p, result, m, u, meta)
	zerolog.Ctx(ctx).Info().
		Str("payload_kind", string(p.Kind)).
		Str("verdict", string(result.Verdict)).
		Msg("verification resolved")

	return &Resolution{Payload: p, Result: result, State: flow.State(), Medicine: m, Unit: u}, nil
}

func (r *Resolver) record(ctx context.Context, p Payload, result scan.Result, m *medicine.Medicine, u *medicine.Unit, meta Meta) {
	if r.recorder == nil {
		return
	}
	s := &scan.Scan{
		Result:      result,
		PayloadKind: string(p.Kind),
		RawPayload:  p.Raw,
		Location:    meta.Location,
		DeviceInfo:  meta.DeviceInfo,
		ScannedAt:   r.now(),
	}
	if m != nil {
		id := m.ID
		s.MedicineID = &id
	}
	if u != nil {
		id := u.ID
		s.UnitID = &id
	}
	if meta.Account != nil {
		id := meta.Account.ID
		s.AccountID = &id
	}
	r.recorder.Record(ctx, s)
}

// recordFailure stores an unknown scan for a lookup that failed before a
// verdict could be reached, so the attempt still shows up in history.
func (r *Resolver) recordFailure(ctx context.Context, p Payload, meta Meta, cause error) {
	zerolog.Ctx(ctx).Warn().Err(cause).Str("payload_kind", string(p.Kind)).Msg("verification lookup failed")
	r.record(ctx, p, scan.NewResult(scan.VerdictUnknown, "", LookupErrorText), nil, nil, meta)
}

// lookup tries unit QR, batch QR, batch token, unit token, then batch
// number for JSON payloads without an id.
func (r *Resolver) lookup(ctx context.Context, p Payload) (*medicine.Medicine, *medicine.Unit, error) {
	u, err := r.units.GetByQR(ctx, p.Raw)
	if found, err := r.unitHit(ctx, u, err); found != nil || err != nil {
		return found, u, err
	}

	m, err := r.medicines.GetByQR(ctx, p.Raw)
	if m != nil || !notFound(err) {
		return m, nil, err
	}

	if key := p.Key(); key != "" {
		m, u, err := r.byToken(ctx, key)
		if m != nil || err != nil {
			return m, u, err
		}
	} else if p.Kind == KindStructured && p.Batch != "" {
		m, err := r.medicines.GetByBatchNumber(ctx, p.Batch)
		if m != nil || !notFound(err) {
			return m, nil, err
		}
	}
	return nil, nil, nil
}

func (r *Resolver) byToken(ctx context.Context, tokenID string) (*medicine.Medicine, *medicine.Unit, error) {
	m, err := r.medicines.GetByTokenID(ctx, tokenID)
	if m != nil || !notFound(err) {
		return m, nil, err
	}
	u, err := r.units.GetByTokenID(ctx, tokenID)
	found, err := r.unitHit(ctx, u, err)
	if found == nil {
		u = nil
	}
	return found, u, err
}

// unitHit loads the parent batch of a unit lookup result.
func (r *Resolver) unitHit(ctx context.Context, u *medicine.Unit, err error) (*medicine.Medicine, error) {
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	m, err := r.medicines.GetByID(ctx, u.MedicineID)
	if notFound(err) {
		return nil, nil
	}
	return m, err
}

func notFound(err error) bool {
	return errors.Is(err, medicine.ErrNotFound) || errors.Is(err, medicine.ErrUnitNotFound)
}
