package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// NewContext returns ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the request logger, falling back to the logger
// installed by SetDefault or to one wrapping slog.Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return newLogger(slog.Default(), ComponentApp)
}

// Middleware attaches a logger tagged with component to every request.
func Middleware(l *Logger, component string) func(http.Handler) http.Handler {
	tagged := l
	if l.Component() != component {
		tagged = l.WithComponent(component)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), tagged)))
		})
	}
}

// Enrich adds args to the request logger already in ctx.
func Enrich(ctx context.Context, args ...any) context.Context {
	return NewContext(ctx, FromContext(ctx).With(args...))
}
