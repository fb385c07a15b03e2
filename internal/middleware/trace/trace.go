// Package trace assigns request IDs and logs each request's outcome.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"finboard/internal/log"
)

// HeaderRequestID is read from inbound requests and echoed on responses.
const HeaderRequestID = "X-Request-ID"

type contextKey struct{}

// Stats are cumulative request counters.
type Stats struct {
	Requests     int64
	ServerErrors int64
}

// Middleware traces requests.
type Middleware struct {
	clientIP     func(*http.Request) string
	requests     atomic.Int64
	serverErrors atomic.Int64
}

// NewMiddleware returns a tracer; clientIP may be nil.
func NewMiddleware(clientIP func(*http.Request) string) *Middleware {
	return &Middleware{clientIP: clientIP}
}

// Handler wraps next. The request logger in the context gains the request
// ID so downstream log lines can be correlated.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), contextKey{}, id)
		ctx = log.Enrich(ctx, log.FieldRequestID, id)
		r = r.WithContext(ctx)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		m.requests.Add(1)
		level := slog.LevelInfo
		switch {
		case rw.status >= 500:
			level = slog.LevelError
			m.serverErrors.Add(1)
		case rw.status >= 400:
			level = slog.LevelWarn
		}

		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
			WithHTTPResponse(rw.status, time.Since(start).Milliseconds())
		if m.clientIP != nil {
			fields.WithClientIP(m.clientIP(r))
		}
		log.FromContext(ctx).Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
	})
}

// Stats returns a snapshot of the counters.
func (m *Middleware) Stats() Stats {
	return Stats{Requests: m.requests.Load(), ServerErrors: m.serverErrors.Load()}
}

// RequestID returns the ID assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
