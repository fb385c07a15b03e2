// Package http exposes the ledgers and the derived dashboard as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"

	"github.com/shopspring/decimal"
)

// LedgerAPI is the write and read side of the ledgers.
type LedgerAPI interface {
	Snapshot(ctx context.Context, userID string) (core.Snapshot, error)
	SaveRevenue(ctx context.Context, userID string, e core.RevenueEntry) (core.RevenueEntry, error)
	SaveExpense(ctx context.Context, userID string, e core.ExpenseEntry) (core.ExpenseEntry, error)
	SaveDebt(ctx context.Context, userID string, e core.DebtEntry) (core.DebtEntry, error)
	SaveCashFlow(ctx context.Context, userID string, e core.CashFlowEntry) (core.CashFlowEntry, error)
	SaveProfitLoss(ctx context.Context, userID string, e core.ProfitLossEntry) (core.ProfitLossEntry, error)
	SaveKPI(ctx context.Context, userID string, e core.KpiEntry) (core.KpiEntry, error)
	Delete(ctx context.Context, userID string, kind core.Kind, id string) error
}

// DashboardAPI serves derived metrics.
type DashboardAPI interface {
	Get(ctx context.Context, userID string) (metrics.Metrics, error)
	Projection(ctx context.Context, userID string, startingBalance *decimal.Decimal) (metrics.Projection, error)
	ComputeSnapshot(snap core.Snapshot) metrics.Metrics
}

// Server is the API http.Server with its supporting middleware state.
type Server struct {
	http.Server
	ledger    LedgerAPI
	dashboard DashboardAPI
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	ready     func(context.Context) error
	logger    *log.Logger
	kinds     map[string]kindRoute
}

type Option func(*Server)

// WithRateLimit throttles /api requests per client IP.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithReadiness installs the /readyz check, usually a store ping.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, lg LedgerAPI, dash DashboardAPI, opts ...Option) (*Server, error) {
	s := &Server{
		ledger:    lg,
		dashboard: dash,
		logger:    log.New(log.DefaultConfig()),
	}
	for _, o := range opts {
		o(s)
	}
	s.kinds = s.kindRoutes()

	ips, err := security.NewIPResolver()
	if err != nil {
		return nil, err
	}
	s.tracer = trace.NewMiddleware(ips.ClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("POST /api/dashboard/preview", s.handlePreview)
	api.HandleFunc("GET /api/cash-flow/projection", s.handleProjection)
	api.HandleFunc("GET /api/kpis/summary", s.handleKPISummary)
	api.HandleFunc("GET /api/debts/summary", s.handleDebtSummary)
	api.HandleFunc("GET /api/profit-loss/summary", s.handleProfitLossSummary)
	api.HandleFunc("GET /api/{kind}", s.handleList)
	api.HandleFunc("POST /api/{kind}", s.handleCreate)
	api.HandleFunc("PUT /api/{kind}/{id}", s.handleUpdate)
	api.HandleFunc("DELETE /api/{kind}/{id}", s.handleDelete)

	var apiHandler http.Handler = requireUser(api)
	if s.limiter != nil {
		apiHandler = s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})(apiHandler)
	}

	root := http.NewServeMux()
	root.Handle("/api/", apiHandler)
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)

	var h http.Handler = root
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.tracer.Handler(h)
	h = log.Middleware(s.logger, log.ComponentHTTP)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Stats returns the request counters.
func (s *Server) Stats() trace.Stats {
	return s.tracer.Stats()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
