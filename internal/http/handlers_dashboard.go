package http

import (
	"io"
	"net/http"
	"strings"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/metrics"

	"github.com/shopspring/decimal"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	m, ok := s.metrics(w, r)
	if ok {
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) handleKPISummary(w http.ResponseWriter, r *http.Request) {
	if m, ok := s.metrics(w, r); ok {
		writeJSON(w, http.StatusOK, m.KPIs)
	}
}

func (s *Server) handleDebtSummary(w http.ResponseWriter, r *http.Request) {
	if m, ok := s.metrics(w, r); ok {
		writeJSON(w, http.StatusOK, m.Debts)
	}
}

func (s *Server) handleProfitLossSummary(w http.ResponseWriter, r *http.Request) {
	if m, ok := s.metrics(w, r); ok {
		writeJSON(w, http.StatusOK, m.ProfitLoss)
	}
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) (metrics.Metrics, bool) {
	m, err := s.dashboard.Get(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return metrics.Metrics{}, false
	}
	return m, true
}

// handleProjection serves the running balance. starting_balance overrides
// the configured opening balance and may be negative.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	var start *decimal.Decimal
	if raw := strings.TrimSpace(r.URL.Query().Get("starting_balance")); raw != "" {
		v, ok := core.CoerceAmount(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid starting_balance")
			return
		}
		start = &v
	}
	p, err := s.dashboard.Projection(r.Context(), userID(r.Context()), start)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePreview computes metrics for ledgers posted in the body without
// storing them. Amounts and dates are coerced like stored rows.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return
	}
	snap, fixes, err := core.CoerceSnapshot(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return
	}
	logger := log.FromContext(r.Context())
	for _, f := range fixes {
		logger.WarnContext(r.Context(), "Invalid preview value coerced",
			"ledger", f.Ledger, "index", f.Index, "field", f.Field, "raw", f.Raw)
	}
	writeJSON(w, http.StatusOK, s.dashboard.ComputeSnapshot(snap))
}
