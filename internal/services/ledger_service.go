package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
)

type ledgerStore interface {
	ledger.SnapshotReader
	ledger.Writer
}

// LedgerService validates and persists ledger rows, then signals every
// notifier. Notification failures are logged and never fail the write.
type LedgerService struct {
	store     ledgerStore
	notifiers []ledger.Notifier
	now       func() time.Time
}

func NewLedgerService(store ledgerStore, notifiers ...ledger.Notifier) *LedgerService {
	active := make([]ledger.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &LedgerService{store: store, notifiers: active, now: time.Now}
}

// Snapshot returns every ledger of the user.
func (s *LedgerService) Snapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	snap, err := s.store.LoadSnapshot(ctx, userID)
	if err != nil {
		return snap, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

func (s *LedgerService) SaveRevenue(ctx context.Context, userID string, e core.RevenueEntry) (core.RevenueEntry, error) {
	return save(ctx, s, userID, core.KindRevenue, e, e.ID, s.store.SaveRevenue, func(v core.RevenueEntry) string { return v.ID })
}

func (s *LedgerService) SaveExpense(ctx context.Context, userID string, e core.ExpenseEntry) (core.ExpenseEntry, error) {
	return save(ctx, s, userID, core.KindExpense, e, e.ID, s.store.SaveExpense, func(v core.ExpenseEntry) string { return v.ID })
}

func (s *LedgerService) SaveDebt(ctx context.Context, userID string, e core.DebtEntry) (core.DebtEntry, error) {
	return save(ctx, s, userID, core.KindDebt, e, e.ID, s.store.SaveDebt, func(v core.DebtEntry) string { return v.ID })
}

func (s *LedgerService) SaveCashFlow(ctx context.Context, userID string, e core.CashFlowEntry) (core.CashFlowEntry, error) {
	return save(ctx, s, userID, core.KindCashFlow, e, e.ID, s.store.SaveCashFlow, func(v core.CashFlowEntry) string { return v.ID })
}

func (s *LedgerService) SaveProfitLoss(ctx context.Context, userID string, e core.ProfitLossEntry) (core.ProfitLossEntry, error) {
	return save(ctx, s, userID, core.KindProfitLoss, e, e.ID, s.store.SaveProfitLoss, func(v core.ProfitLossEntry) string { return v.ID })
}

func (s *LedgerService) SaveKPI(ctx context.Context, userID string, e core.KpiEntry) (core.KpiEntry, error) {
	e.Direction = e.Direction.OrDefault()
	return save(ctx, s, userID, core.KindKPI, e, e.ID, s.store.SaveKPI, func(v core.KpiEntry) string { return v.ID })
}

func (s *LedgerService) Delete(ctx context.Context, userID string, kind core.Kind, id string) error {
	if !kind.IsValid() {
		return &ValidationError{Err: core.ErrInvalidKind}
	}
	if err := s.store.Delete(ctx, userID, kind, id); err != nil {
		return fmt.Errorf("delete %s entry: %w", kind, err)
	}
	s.notify(ctx, ledger.Change{UserID: userID, Kind: kind, Op: ledger.OpDelete, EntryID: id, At: s.now()})
	return nil
}

type validatable interface {
	Validate() error
}

func save[T validatable](
	ctx context.Context,
	s *LedgerService,
	userID string,
	kind core.Kind,
	e T,
	id string,
	persist func(context.Context, string, T) (T, error),
	idOf func(T) string,
) (T, error) {
	if err := e.Validate(); err != nil {
		return e, &ValidationError{Err: err}
	}
	op := ledger.OpCreate
	if id != "" {
		op = ledger.OpUpdate
	}
	saved, err := persist(ctx, userID, e)
	if err != nil {
		return e, fmt.Errorf("save %s entry: %w", kind, err)
	}
	s.notify(ctx, ledger.Change{UserID: userID, Kind: kind, Op: op, EntryID: idOf(saved), At: s.now()})
	return saved, nil
}

func (s *LedgerService) notify(ctx context.Context, c ledger.Change) {
	if len(s.notifiers) == 0 {
		slog.WarnContext(ctx, "No change notifier configured, dashboard will not refresh", "user_id", c.UserID)
		return
	}
	for _, n := range s.notifiers {
		if err := n.NotifyChange(ctx, c); err != nil {
			slog.ErrorContext(ctx, "Failed to notify ledger change",
				"user_id", c.UserID, "kind", c.Kind, "op", c.Op, "error", err)
		}
	}
}
