// Package backend selects and opens the ledger store and the optional
// dashboard exporter from configuration.
package backend

import (
	"context"
	"fmt"

	"finboard/internal/config"
	"finboard/internal/ledger"
)

// Type names a ledger store implementation.
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

// Config holds what the factory needs to open a backend.
type Config struct {
	Type         Type
	SQLiteDBPath string
	SeedFile     string

	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// FromAppConfig extracts the backend settings from the application config.
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Type:               Type(c.DataBackend),
		SQLiteDBPath:       c.SQLiteDBPath,
		SeedFile:           c.SeedFile,
		SpreadsheetID:      c.GoogleSpreadsheetID,
		SheetName:          c.GoogleSheetName,
		ServiceAccountJSON: c.GoogleServiceAccountJSON,
		ServiceAccountFile: c.GoogleServiceAccountFile,
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %q", c.Type)
	}
	if c.Type == SQLite && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}

// Result is an opened store plus its readiness check.
type Result struct {
	Store ledger.Store
	// Ping is nil for stores that cannot become unavailable.
	Ping func(ctx context.Context) error
	// SchemaVersion is the applied migration version, 0 for memory stores.
	SchemaVersion uint
}
