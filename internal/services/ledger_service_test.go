package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/ledger/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []ledger.Change
	err     error
}

func (n *recordingNotifier) NotifyChange(_ context.Context, c ledger.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return n.err
}

func (n *recordingNotifier) Changes() []ledger.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ledger.Change(nil), n.changes...)
}

func TestLedgerServiceSaveNotifies(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	svc := NewLedgerService(memory.New(), n)

	e, err := svc.SaveRevenue(ctx, "u1", core.RevenueEntry{
		Date: core.NewDate(2024, 1, 1), Client: "Acme", Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	e.Amount = decimal.NewFromInt(120)
	_, err = svc.SaveRevenue(ctx, "u1", e)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u1", core.KindRevenue, e.ID))

	changes := n.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, ledger.OpCreate, changes[0].Op)
	assert.Equal(t, ledger.OpUpdate, changes[1].Op)
	assert.Equal(t, ledger.OpDelete, changes[2].Op)
	for _, c := range changes {
		assert.Equal(t, "u1", c.UserID)
		assert.Equal(t, core.KindRevenue, c.Kind)
		assert.Equal(t, e.ID, c.EntryID)
	}
}

func TestLedgerServiceValidation(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	svc := NewLedgerService(memory.New(), n)

	_, err := svc.SaveCashFlow(ctx, "u1", core.CashFlowEntry{Month: "2024/01"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, core.ErrInvalidMonth)

	err = svc.Delete(ctx, "u1", core.Kind("notes"), "x")
	assert.True(t, IsValidation(err))

	assert.Empty(t, n.Changes(), "rejected writes do not notify")
}

func TestLedgerServiceNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New())

	_, err := svc.SaveDebt(ctx, "u1", core.DebtEntry{ID: "nope", Creditor: "Bank", DueDate: core.NewDate(2024, 1, 1)})
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))

	err = svc.Delete(ctx, "u1", core.KindDebt, "nope")
	assert.True(t, IsNotFound(err))
}

func TestLedgerServiceNotifierFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{err: errors.New("broker down")}
	store := memory.New()
	svc := NewLedgerService(store, n, nil)

	kpi, err := svc.SaveKPI(ctx, "u1", core.KpiEntry{MetricName: "Leads", Value: decimal.NewFromInt(1), Target: decimal.NewFromInt(2)})
	require.NoError(t, err)
	assert.Equal(t, core.HigherIsBetter, kpi.Direction)

	snap, err := svc.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.KPIs, 1)
	assert.Len(t, n.Changes(), 1)
}
