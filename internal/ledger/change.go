package ledger

import (
	"context"
	"time"

	"finboard/internal/core"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one mutation of a user's ledgers. It carries no row
// data: consumers reload the snapshot.
type Change struct {
	UserID  string
	Kind    core.Kind
	Op      Op
	EntryID string
	At      time.Time
}

// Notifier delivers change signals to whoever recomputes derived metrics.
type Notifier interface {
	NotifyChange(ctx context.Context, c Change) error
}
