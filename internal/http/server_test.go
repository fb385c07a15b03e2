package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finboard/internal/cache"
	"finboard/internal/ledger/memory"
	"finboard/internal/metrics"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store := memory.New()
	dash := services.NewDashboardService(store, cache.NewLRUCache[metrics.Metrics](10, time.Minute),
		services.WithClock(func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) }))
	lg := services.NewLedgerService(store, dash)
	srv, err := NewServer(":0", lg, dash, opts...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", "", "").Code)

	down := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("db gone") }))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", "", "").Code)
}

func TestAPIRequiresUser(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "X-User-ID")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLedgerCRUDRefreshesDashboard(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/dashboard", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", decode(t, rec)["total_revenue"])

	rec = do(t, srv, http.MethodPost, "/api/revenue", "u1",
		`{"date":"2024-01-05","client":"Acme","category":"Consulting","amount":"1000"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decode(t, rec)["id"].(string)
	require.NotEmpty(t, id)

	rec = do(t, srv, http.MethodPost, "/api/expenses", "u1",
		`{"date":"2024-01-06","vendor":"Rent Co","category":"Rent","amount":"400"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/dashboard", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, "1000", m["total_revenue"])
	assert.Equal(t, "600", m["net_profit"])
	assert.Equal(t, "60", m["profit_margin"])

	rec = do(t, srv, http.MethodPut, "/api/revenue/"+id, "u1",
		`{"date":"2024-01-05","client":"Acme","category":"Consulting","amount":"2000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2000", decode(t, do(t, srv, http.MethodGet, "/api/dashboard", "u1", ""))["total_revenue"])

	rec = do(t, srv, http.MethodGet, "/api/revenue", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/revenue/"+id, "u1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/revenue/"+id, "u1", "").Code)
	assert.Equal(t, "0", decode(t, do(t, srv, http.MethodGet, "/api/dashboard", "u1", ""))["total_revenue"])

	rec = do(t, srv, http.MethodGet, "/api/revenue", "u2", "")
	assert.Equal(t, "[]\n", rec.Body.String(), "users are isolated")
}

func TestLedgerErrors(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown ledger", http.MethodGet, "/api/invoices", "", http.StatusNotFound},
		{"malformed json", http.MethodPost, "/api/revenue", `{"amount":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/revenue", `{"amount":"1","colour":"red"}`, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/api/expenses", `{"date":"2024-01-01","vendor":"V","amount":"-5"}`, http.StatusUnprocessableEntity},
		{"bad month", http.MethodPost, "/api/cash-flow", `{"month":"2024-13","inflows":"1","outflows":"1"}`, http.StatusUnprocessableEntity},
		{"bad direction", http.MethodPost, "/api/kpis", `{"metric_name":"CAC","value":"1","target":"2","direction":"up"}`, http.StatusUnprocessableEntity},
		{"update unknown id", http.MethodPut, "/api/profit-loss/nope", `{"month":"2024-01","revenue_total":"1","expenses_total":"1"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, "u1", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestProjection(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{
		`{"month":"2024-02","inflows":"100","outflows":"50"}`,
		`{"month":"2024-01","inflows":"200","outflows":"300"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/cash-flow", "u1", body).Code)
	}

	rec := do(t, srv, http.MethodGet, "/api/cash-flow/projection?starting_balance=1000", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p metrics.Projection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Len(t, p.Rows, 2)
	assert.Equal(t, "2024-01", p.Rows[0].Month)
	assert.Equal(t, "950", p.EndingBalance.String())

	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodGet, "/api/cash-flow/projection?starting_balance=lots", "u1", "").Code)
}

func TestSummaries(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/kpis", "u1",
		`{"metric_name":"Churn","category":"Retention","value":"5","target":"4","direction":"lower"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/debts", "u1",
		`{"creditor":"Bank","type":"Loan","original_amount":"1000","current_balance":"800","interest_rate":"5","monthly_payment":"50","due_date":"2024-01-20"}`).Code)

	kpis := decode(t, do(t, srv, http.MethodGet, "/api/kpis/summary", "u1", ""))
	assert.EqualValues(t, 1, kpis["critical"])

	debts := decode(t, do(t, srv, http.MethodGet, "/api/debts/summary", "u1", ""))
	assert.EqualValues(t, 1, debts["high"])

	rec := do(t, srv, http.MethodGet, "/api/profit-loss/summary", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreviewDoesNotStore(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/dashboard/preview", "u1",
		`{"revenue":[{"date":"2024-01-01","client":"A","amount":"500"}],"expenses":[{"date":"2024-01-02","vendor":"B","amount":"100"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "400", decode(t, rec)["net_profit"])

	assert.Equal(t, "[]\n", do(t, srv, http.MethodGet, "/api/revenue", "u1", "").Body.String())
}

func TestPreviewCoercesAmounts(t *testing.T) {
	cases := []struct {
		name   string
		amount string
	}{
		{"non-numeric", `"abc"`},
		{"empty", `""`},
		{"negative", `"-50"`},
		{"null", `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t)
			rec := do(t, srv, http.MethodPost, "/api/dashboard/preview", "u1",
				`{"revenue":[{"date":"2024-01-01","client":"A","amount":`+tc.amount+`},{"date":"2024-01-02","client":"B","amount":"200"}]}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "200", decode(t, rec)["total_revenue"])
		})
	}
}

func TestPreviewRejectsMalformedBody(t *testing.T) {
	cases := map[string]string{
		"broken json":    `{"revenue":[`,
		"unknown ledger": `{"invoices":[]}`,
		"unknown field":  `{"revenue":[{"amount":"1","colour":"red"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t)
			rec := do(t, srv, http.MethodPost, "/api/dashboard/preview", "u1", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, WithRateLimit(ratelimit.NewLimiter(1)))
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/revenue", "u1", "").Code)
	rec := do(t, srv, http.MethodGet, "/api/revenue", "u1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "", "").Code, "health checks are not limited")
	assert.Equal(t, int64(3), srv.Stats().Requests)
}
