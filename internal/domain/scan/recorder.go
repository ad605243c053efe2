package scan

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultRecordTimeout = 5 * time.Second

// Recorder writes scan rows in the background so a slow or failing store
// never delays a verification response. Drain waits for pending writes.
type Recorder struct {
	repo    Repository
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(repo Repository, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	return &Recorder{repo: repo, timeout: timeout}
}

// Record stores s on a context detached from the caller's cancellation.
// After Drain has started, writes happen inline.
func (r *Recorder) Record(ctx context.Context, s *Scan) {
	ctx = context.WithoutCancel(ctx)

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		r.write(ctx, s)
		return
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	go func() {
		defer r.wg.Done()
		r.write(ctx, s)
	}()
}

func (r *Recorder) write(ctx context.Context, s *Scan) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.repo.Create(ctx, s); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("verdict", string(s.Result.Verdict)).
			Str("payload_kind", s.PayloadKind).
			Msg("record scan")
	}
}

// Drain blocks until pending writes finish or ctx is done.
func (r *Recorder) Drain(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
