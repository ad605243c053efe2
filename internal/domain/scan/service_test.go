package scan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dhanvantari/dhanvantari/internal/domain/account"
	"github.com/dhanvantari/dhanvantari/internal/platform/apperr"
	"github.com/dhanvantari/dhanvantari/pkg/pagination"
)

// -- Mock Repository --

type mockScanRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Scan
	delay time.Duration
	err   error
}

func newMockScanRepo() *mockScanRepo {
	return &mockScanRepo{store: make(map[uuid.UUID]*Scan)}
}

func (m *mockScanRepo) Create(ctx context.Context, s *Scan) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	if s.ScannedAt.IsZero() {
		s.ScannedAt = time.Now()
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *mockScanRepo) GetByID(_ context.Context, id uuid.UUID) (*Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *mockScanRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit, offset int) ([]*Scan, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Scan
	for _, s := range m.store {
		if s.AccountID != nil && *s.AccountID == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScannedAt.After(out[j].ScannedAt) })
	return pagination.Window(out, limit, offset), len(out), nil
}

func (m *mockScanRepo) AccountsForMedicine(_ context.Context, medicineID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, s := range m.store {
		if s.AccountID != nil && s.MedicineID != nil && *s.MedicineID == medicineID {
			ids = append(ids, *s.AccountID)
		}
	}
	return ids, nil
}

func (m *mockScanRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

func scanFor(accountID uuid.UUID, v Verdict, at time.Time) *Scan {
	id := accountID
	return &Scan{AccountID: &id, Result: NewResult(v, "Paracetamol", ""), PayloadKind: "bare", RawPayload: "T1", ScannedAt: at}
}

// -- Tests --

func TestNewResult(t *testing.T) {
	r := NewResult(VerdictGenuine, "Paracetamol", "T1")
	if !r.Matched || r.Confidence != 1 || !r.Genuine() {
		t.Errorf("unexpected genuine result %+v", r)
	}
	u := NewResult(VerdictUnknown, "", "XYZ-000")
	if u.Matched || u.Genuine() {
		t.Errorf("unexpected unknown result %+v", u)
	}
	if !VerdictRecalled.Valid() || Verdict("counterfeit").Valid() {
		t.Error("unexpected verdict validity")
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	repo := newMockScanRepo()
	svc := NewService(repo)
	acc := &account.Account{ID: uuid.New()}
	now := time.Now()
	repo.Create(context.Background(), scanFor(acc.ID, VerdictGenuine, now.Add(-time.Hour)))
	repo.Create(context.Background(), scanFor(acc.ID, VerdictExpired, now))
	repo.Create(context.Background(), scanFor(uuid.New(), VerdictGenuine, now))

	items, total, err := svc.History(context.Background(), acc, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 scans, got %d (total %d)", len(items), total)
	}
	if items[0].Result.Verdict != VerdictExpired {
		t.Errorf("expected newest scan first, got %s", items[0].Result.Verdict)
	}
}

func TestGet_Visibility(t *testing.T) {
	repo := newMockScanRepo()
	svc := NewService(repo)
	ctx := context.Background()
	owner := &account.Account{ID: uuid.New(), Role: "user"}
	s := scanFor(owner.ID, VerdictGenuine, time.Now())
	repo.Create(ctx, s)
	anon := &Scan{Result: NewResult(VerdictUnknown, "", ""), PayloadKind: "bare", RawPayload: "x"}
	repo.Create(ctx, anon)

	if _, err := svc.Get(ctx, owner, s.ID); err != nil {
		t.Errorf("owner should see scan: %v", err)
	}
	stranger := &account.Account{ID: uuid.New(), Role: "user"}
	if _, err := svc.Get(ctx, stranger, s.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, owner, anon.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected anonymous scan hidden from users, got %v", err)
	}
	admin := &account.Account{ID: uuid.New(), Role: "admin"}
	if _, err := svc.Get(ctx, admin, anon.ID); err != nil {
		t.Errorf("admin should see anonymous scan: %v", err)
	}
	if _, err := svc.Get(ctx, nil, s.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRecorder_DrainWaitsForWrites(t *testing.T) {
	repo := newMockScanRepo()
	repo.delay = 20 * time.Millisecond
	rec := NewRecorder(repo, time.Second)

	for i := 0; i < 5; i++ {
		rec.Record(context.Background(), scanFor(uuid.New(), VerdictGenuine, time.Time{}))
	}
	if err := rec.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if repo.count() != 5 {
		t.Errorf("expected 5 scans after drain, got %d", repo.count())
	}
}

func TestRecorder_DetachedFromCallerCancel(t *testing.T) {
	repo := newMockScanRepo()
	repo.delay = 20 * time.Millisecond
	rec := NewRecorder(repo, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Record(ctx, scanFor(uuid.New(), VerdictUnknown, time.Time{}))
	cancel()

	rec.Drain(context.Background())
	if repo.count() != 1 {
		t.Errorf("expected scan written despite cancelled request, got %d", repo.count())
	}
}

func TestRecorder_FailureIsSwallowed(t *testing.T) {
	repo := newMockScanRepo()
	repo.err = errors.New("db down")
	rec := NewRecorder(repo, time.Second)
	rec.Record(context.Background(), scanFor(uuid.New(), VerdictGenuine, time.Time{}))
	if err := rec.Drain(context.Background()); err != nil {
		t.Errorf("expected drain to succeed, got %v", err)
	}
}

func TestRecorder_DrainTimeout(t *testing.T) {
	repo := newMockScanRepo()
	repo.delay = 500 * time.Millisecond
	rec := NewRecorder(repo, time.Second)
	rec.Record(context.Background(), scanFor(uuid.New(), VerdictGenuine, time.Time{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rec.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRecorder_InlineAfterDrain(t *testing.T) {
	repo := newMockScanRepo()
	rec := NewRecorder(repo, time.Second)
	rec.Drain(context.Background())

	rec.Record(context.Background(), scanFor(uuid.New(), VerdictGenuine, time.Time{}))
	if repo.count() != 1 {
		t.Errorf("expected inline write after drain, got %d", repo.count())
	}
}
