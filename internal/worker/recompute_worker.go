package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/ledger"
)

// RecomputeWorker feeds ledger change messages into a Coalescer and
// periodically schedules every user, in case a message was lost.
type RecomputeWorker struct {
	coalescer *Coalescer
	users     ledger.UserLister
}

func NewRecomputeWorker(c *Coalescer, users ledger.UserLister) *RecomputeWorker {
	return &RecomputeWorker{coalescer: c, users: users}
}

// HandleLedgerChanged processes a single change message from AMQP.
func (w *RecomputeWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.DebugContext(ctx, "Ledger change received",
		"user_id", msg.UserID,
		"kind", msg.Kind,
		"op", msg.Op,
		"lag", time.Since(msg.Timestamp).String())
	w.coalescer.Signal(msg.UserID)
	return nil
}

// ScheduleAll marks every known user for refresh.
func (w *RecomputeWorker) ScheduleAll(ctx context.Context) error {
	users, err := w.users.Users(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		w.coalescer.Signal(u)
	}
	slog.InfoContext(ctx, "Scheduled catch-up refresh", "users", len(users))
	return nil
}

// RunCatchUp calls ScheduleAll every interval until ctx is done.
func (w *RecomputeWorker) RunCatchUp(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ScheduleAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic catch-up failed", "error", err)
			}
		}
	}
}
