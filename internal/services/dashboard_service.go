package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/metrics"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Exporter publishes freshly computed metrics to an external sink.
type Exporter interface {
	ExportMetrics(ctx context.Context, userID string, m metrics.Metrics) error
}

type dashboardStore interface {
	ledger.SnapshotReader
	ledger.DashboardStore
}

// DashboardService computes, caches and persists derived metrics.
type DashboardService struct {
	store           dashboardStore
	cache           cache.Cache[metrics.Metrics]
	exporter        Exporter
	startingBalance decimal.Decimal
	now             func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

type DashboardOption func(*DashboardService)

func WithExporter(e Exporter) DashboardOption {
	return func(s *DashboardService) { s.exporter = e }
}

func WithStartingBalance(b decimal.Decimal) DashboardOption {
	return func(s *DashboardService) { s.startingBalance = b }
}

func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

func NewDashboardService(store dashboardStore, c cache.Cache[metrics.Metrics], opts ...DashboardOption) *DashboardService {
	s := &DashboardService{
		store:       store,
		cache:       c,
		now:         time.Now,
		generations: make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the metrics of a user, computing them on a cache miss.
// Concurrent misses for the same user and ledger generation share one
// computation. When the ledgers cannot be read the last persisted result
// is served instead.
func (s *DashboardService) Get(ctx context.Context, userID string) (metrics.Metrics, error) {
	if m, ok := s.cache.Get(userID); ok {
		return m, nil
	}

	gen := s.generation(userID)
	v, err, _ := s.group.Do(fmt.Sprintf("%s@%d", userID, gen), func() (any, error) {
		return s.compute(ctx, userID, gen)
	})
	if err == nil {
		return v.(metrics.Metrics), nil
	}

	stale, lerr := s.store.LoadDashboard(ctx, userID)
	if lerr != nil {
		return metrics.Metrics{}, err
	}
	slog.WarnContext(ctx, "Serving last persisted dashboard", "user_id", userID, "error", err)
	return stale, nil
}

// Refresh recomputes and persists the metrics of a user and pushes them to
// the exporter, if any. Export failures are logged only.
func (s *DashboardService) Refresh(ctx context.Context, userID string) error {
	s.Invalidate(userID)
	m, err := s.compute(ctx, userID, s.generation(userID))
	if err != nil {
		return err
	}
	if err := s.store.SaveDashboard(ctx, userID, m); err != nil {
		return fmt.Errorf("persist dashboard: %w", err)
	}
	if s.exporter != nil {
		if err := s.exporter.ExportMetrics(ctx, userID, m); err != nil {
			slog.ErrorContext(ctx, "Failed to export dashboard", "user_id", userID, "error", err)
		}
	}
	slog.InfoContext(ctx, "Dashboard refreshed",
		"user_id", userID,
		"net_profit", m.NetProfit.String(),
		"health_score", m.HealthScore.StringFixed(1),
		"runway", m.Runway.String())
	return nil
}

// Invalidate drops the cached metrics of a user. A computation already in
// flight will not repopulate the cache with its now stale result.
func (s *DashboardService) Invalidate(userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	s.cache.Delete(userID)
}

// NotifyChange implements ledger.Notifier by invalidating the cache.
func (s *DashboardService) NotifyChange(_ context.Context, c ledger.Change) error {
	s.Invalidate(c.UserID)
	return nil
}

// Projection returns the cash-flow running balance. A nil startingBalance
// uses the configured default.
func (s *DashboardService) Projection(ctx context.Context, userID string, startingBalance *decimal.Decimal) (metrics.Projection, error) {
	snap, err := s.store.LoadSnapshot(ctx, userID)
	if err != nil {
		return metrics.Projection{}, fmt.Errorf("load snapshot: %w", err)
	}
	start := s.startingBalance
	if startingBalance != nil {
		start = *startingBalance
	}
	return metrics.Project(snap.CashFlow, start), nil
}

func (s *DashboardService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// compute caches its result only while the ledgers are still at gen.
func (s *DashboardService) compute(ctx context.Context, userID string, gen uint64) (metrics.Metrics, error) {
	snap, err := s.store.LoadSnapshot(ctx, userID)
	if err != nil {
		return metrics.Metrics{}, fmt.Errorf("load snapshot: %w", err)
	}
	m := metrics.Compute(snap, s.options())

	if s.generation(userID) == gen {
		s.cache.Set(userID, m)
	}
	return m, nil
}

func (s *DashboardService) options() metrics.Options {
	return metrics.Options{StartingBalance: s.startingBalance, Now: s.now().UTC()}
}

// ComputeSnapshot runs the aggregator on caller-supplied ledgers without
// touching storage.
func (s *DashboardService) ComputeSnapshot(snap core.Snapshot) metrics.Metrics {
	return metrics.Compute(snap, s.options())
}

// IsNotFound reports whether err is a missing ledger row.
func IsNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
