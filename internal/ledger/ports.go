// Package ledger declares the ports between the services and the ledger
// storage adapters (sqlite and in-memory).
package ledger

import (
	"context"
	"errors"

	"finboard/internal/core"
	"finboard/internal/metrics"
)

var ErrNotFound = errors.New("entry not found")

type (
	// SnapshotReader loads every ledger of a user in one consistent read.
	SnapshotReader interface {
		LoadSnapshot(ctx context.Context, userID string) (core.Snapshot, error)
	}

	// Writer persists ledger rows. Save inserts when the entry ID is empty
	// (assigning a new one) and updates otherwise, returning ErrNotFound
	// for unknown IDs.
	Writer interface {
		SaveRevenue(ctx context.Context, userID string, e core.RevenueEntry) (core.RevenueEntry, error)
		SaveExpense(ctx context.Context, userID string, e core.ExpenseEntry) (core.ExpenseEntry, error)
		SaveDebt(ctx context.Context, userID string, e core.DebtEntry) (core.DebtEntry, error)
		SaveCashFlow(ctx context.Context, userID string, e core.CashFlowEntry) (core.CashFlowEntry, error)
		SaveProfitLoss(ctx context.Context, userID string, e core.ProfitLossEntry) (core.ProfitLossEntry, error)
		SaveKPI(ctx context.Context, userID string, e core.KpiEntry) (core.KpiEntry, error)
		Delete(ctx context.Context, userID string, kind core.Kind, id string) error
	}

	// UserLister enumerates users owning at least one row.
	UserLister interface {
		Users(ctx context.Context) ([]string, error)
	}

	// DashboardStore keeps the last computed metrics per user.
	DashboardStore interface {
		SaveDashboard(ctx context.Context, userID string, m metrics.Metrics) error
		LoadDashboard(ctx context.Context, userID string) (metrics.Metrics, error)
	}

	Store interface {
		SnapshotReader
		Writer
		UserLister
		DashboardStore
		Close() error
	}
)
