package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"finboard/internal/log"
	"finboard/internal/services"
)

const (
	headerUserID = "X-User-ID"
	maxBodyBytes = 1 << 20
	maxUserIDLen = 128
)

type userKey struct{}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// requireUser rejects requests without a usable X-User-ID header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+headerUserID+" header")
			return
		}
		if len(id) > maxUserIDLen || strings.IndexFunc(id, unicode.IsControl) >= 0 {
			writeError(w, http.StatusBadRequest, "invalid "+headerUserID+" header")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, id)
		ctx = log.Enrich(ctx, log.FieldUserID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps service errors onto status codes. Internal
// details are logged, not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case services.IsValidation(err):
		var ve *services.ValidationError
		errors.As(err, &ve)
		writeError(w, http.StatusUnprocessableEntity, ve.Err.Error())
	case services.IsNotFound(err):
		writeError(w, http.StatusNotFound, "entry not found")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a single JSON document into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("malformed JSON body: trailing data")
	}
	return nil
}
