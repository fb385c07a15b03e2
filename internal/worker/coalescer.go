package worker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"finboard/internal/ledger"

	"golang.org/x/sync/errgroup"
)

// RefreshFunc recomputes the derived metrics of one user.
type RefreshFunc func(ctx context.Context, userID string) error

// Coalescer batches change signals per user. The first signal opens a
// window; when it closes every user signalled during it is refreshed once.
type Coalescer struct {
	refresh     RefreshFunc
	window      time.Duration
	concurrency int

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
}

var _ ledger.Notifier = (*Coalescer)(nil)

func NewCoalescer(refresh RefreshFunc, window time.Duration, concurrency int) *Coalescer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coalescer{
		refresh:     refresh,
		window:      window,
		concurrency: concurrency,
		pending:     make(map[string]struct{}),
		wake:        make(chan struct{}, 1),
	}
}

// Signal marks a user for refresh. It never blocks.
func (c *Coalescer) Signal(userID string) {
	c.mu.Lock()
	c.pending[userID] = struct{}{}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// NotifyChange implements ledger.Notifier.
func (c *Coalescer) NotifyChange(_ context.Context, change ledger.Change) error {
	c.Signal(change.UserID)
	return nil
}

// Pending returns the number of users waiting for a refresh.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Run flushes signalled users once per window until ctx is done.
func (c *Coalescer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}

		timer := time.NewTimer(c.window)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		c.Flush(ctx)
	}
}

// Flush refreshes every pending user now. Failed users are signalled again
// so the next window retries them.
func (c *Coalescer) Flush(ctx context.Context) {
	c.mu.Lock()
	users := make([]string, 0, len(c.pending))
	for u := range c.pending {
		users = append(users, u)
	}
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	if len(users) == 0 {
		return
	}
	sort.Strings(users)

	var failedMu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, u := range users {
		g.Go(func() error {
			if err := c.refresh(gctx, u); err != nil {
				slog.ErrorContext(gctx, "Dashboard refresh failed", "user_id", u, "error", err)
				failedMu.Lock()
				failed = append(failed, u)
				failedMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}
	for _, u := range failed {
		c.Signal(u)
	}
	slog.DebugContext(ctx, "Coalesced refresh done", "users", len(users), "failed", len(failed))
}
