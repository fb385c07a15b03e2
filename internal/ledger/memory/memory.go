package memory

import (
	"context"
	"sort"
	"sync"

	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/metrics"

	"github.com/google/uuid"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps all ledgers in process memory. Safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	users      map[string]*core.Snapshot
	dashboards map[string]metrics.Metrics
}

func New() *Store {
	return &Store{
		users:      make(map[string]*core.Snapshot),
		dashboards: make(map[string]metrics.Metrics),
	}
}

// Seed replaces the snapshot of a user, assigning IDs where missing.
func (s *Store) Seed(userID string, snap core.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copySnapshot(snap)
	for i := range cp.Revenue {
		cp.Revenue[i].ID = idOrNew(cp.Revenue[i].ID)
	}
	for i := range cp.Expenses {
		cp.Expenses[i].ID = idOrNew(cp.Expenses[i].ID)
	}
	for i := range cp.Debts {
		cp.Debts[i].ID = idOrNew(cp.Debts[i].ID)
	}
	for i := range cp.CashFlow {
		cp.CashFlow[i].ID = idOrNew(cp.CashFlow[i].ID)
	}
	for i := range cp.ProfitLoss {
		cp.ProfitLoss[i].ID = idOrNew(cp.ProfitLoss[i].ID)
	}
	for i := range cp.KPIs {
		cp.KPIs[i].ID = idOrNew(cp.KPIs[i].ID)
	}
	s.users[userID] = &cp
}

func (s *Store) LoadSnapshot(_ context.Context, userID string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.users[userID]
	if !ok {
		return core.Snapshot{}, nil
	}
	return copySnapshot(*snap), nil
}

func (s *Store) SaveRevenue(_ context.Context, userID string, e core.RevenueEntry) (core.RevenueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(userID)
	var err error
	snap.Revenue, e, err = upsert(snap.Revenue, e, func(v core.RevenueEntry) string { return v.ID },
		func(v *core.RevenueEntry, id string) { v.ID = id })
	return e, err
}

func (s *Store) SaveExpense(_ context.Context, userID string, e core.ExpenseEntry) (core.ExpenseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(userID)
	var err error
	snap.Expenses, e, err = upsert(snap.Expenses, e, func(v core.ExpenseEntry) string { return v.ID },
		func(v *core.ExpenseEntry, id string) { v.ID = id })
	return e, err
}

func (s *Store) SaveDebt(_ context.Context, userID string, e core.DebtEntry) (core.DebtEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(userID)
	var err error
	snap.Debts, e, err = upsert(snap.Debts, e, func(v core.DebtEntry) string { return v.ID },
		func(v *core.DebtEntry, id string) { v.ID = id })
	return e, err
}

func (s *Store) SaveCashFlow(_ context.Context, userID string, e core.CashFlowEntry) (core.CashFlowEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(userID)
	var err error
	snap.CashFlow, e, err = upsert(snap.CashFlow, e, func(v core.CashFlowEntry) string { return v.ID },
		func(v *core.CashFlowEntry, id string) { v.ID = id })
	return e, err
}

func (s *Store) SaveProfitLoss(_ context.Context, userID string, e core.ProfitLossEntry) (core.ProfitLossEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(userID)
	var err error
	snap.ProfitLoss, e, err = upsert(snap.ProfitLoss, e, func(v core.ProfitLossEntry) string { return v.ID },
		func(v *core.ProfitLossEntry, id string) { v.ID = id })
	return e, err
}

func (s *Store) SaveKPI(_ context.Context, userID string, e core.KpiEntry) (core.KpiEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot(userID)
	e.Direction = e.Direction.OrDefault()
	var err error
	snap.KPIs, e, err = upsert(snap.KPIs, e, func(v core.KpiEntry) string { return v.ID },
		func(v *core.KpiEntry, id string) { v.ID = id })
	return e, err
}

func (s *Store) Delete(_ context.Context, userID string, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.users[userID]
	if !ok {
		return ledger.ErrNotFound
	}
	var removed bool
	switch kind {
	case core.KindRevenue:
		snap.Revenue, removed = remove(snap.Revenue, id, func(v core.RevenueEntry) string { return v.ID })
	case core.KindExpense:
		snap.Expenses, removed = remove(snap.Expenses, id, func(v core.ExpenseEntry) string { return v.ID })
	case core.KindDebt:
		snap.Debts, removed = remove(snap.Debts, id, func(v core.DebtEntry) string { return v.ID })
	case core.KindCashFlow:
		snap.CashFlow, removed = remove(snap.CashFlow, id, func(v core.CashFlowEntry) string { return v.ID })
	case core.KindProfitLoss:
		snap.ProfitLoss, removed = remove(snap.ProfitLoss, id, func(v core.ProfitLossEntry) string { return v.ID })
	case core.KindKPI:
		snap.KPIs, removed = remove(snap.KPIs, id, func(v core.KpiEntry) string { return v.ID })
	default:
		return core.ErrInvalidKind
	}
	if !removed {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Store) Users(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SaveDashboard(_ context.Context, userID string, m metrics.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboards[userID] = m
	return nil
}

func (s *Store) LoadDashboard(_ context.Context, userID string) (metrics.Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.dashboards[userID]
	if !ok {
		return metrics.Metrics{}, ledger.ErrNotFound
	}
	return m, nil
}

func (s *Store) Close() error { return nil }

// snapshot must be called with mu held.
func (s *Store) snapshot(userID string) *core.Snapshot {
	snap, ok := s.users[userID]
	if !ok {
		snap = &core.Snapshot{}
		s.users[userID] = snap
	}
	return snap
}

func upsert[T any](list []T, e T, id func(T) string, setID func(*T, string)) ([]T, T, error) {
	if id(e) == "" {
		setID(&e, uuid.NewString())
		return append(list, e), e, nil
	}
	for i := range list {
		if id(list[i]) == id(e) {
			list[i] = e
			return list, e, nil
		}
	}
	return list, e, ledger.ErrNotFound
}

func remove[T any](list []T, target string, id func(T) string) ([]T, bool) {
	for i := range list {
		if id(list[i]) == target {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

func idOrNew(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func copySnapshot(s core.Snapshot) core.Snapshot {
	return core.Snapshot{
		Revenue:    append([]core.RevenueEntry(nil), s.Revenue...),
		Expenses:   append([]core.ExpenseEntry(nil), s.Expenses...),
		Debts:      append([]core.DebtEntry(nil), s.Debts...),
		CashFlow:   append([]core.CashFlowEntry(nil), s.CashFlow...),
		ProfitLoss: append([]core.ProfitLossEntry(nil), s.ProfitLoss...),
		KPIs:       append([]core.KpiEntry(nil), s.KPIs...),
	}
}
