package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finboard/internal/ledger/memory"
	"finboard/internal/services"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/storage"
)

// Factory opens backends. The logger receives one line per opened component.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Open creates the ledger store selected by cfg.Type.
func (f *Factory) Open(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		version, err := storage.SchemaVersion(cfg.SQLiteDBPath)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to read schema version: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath, "schema_version", version)
		return &Result{Store: repo, Ping: repo.Ping, SchemaVersion: version}, nil
	default:
		store, err := memory.NewFromFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
		}
		f.logger.Info("Initialized memory backend", "seed_file", cfg.SeedFile)
		return &Result{Store: store}, nil
	}
}

// Exporter returns the Google Sheets exporter, or nil when no spreadsheet
// is configured.
func (f *Factory) Exporter(ctx context.Context, cfg Config) (services.Exporter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, nil
	}
	exp, err := gsheet.NewExporter(ctx, gsheet.Config{
		SpreadsheetID:   cfg.SpreadsheetID,
		SheetName:       cfg.SheetName,
		CredentialsJSON: cfg.ServiceAccountJSON,
		CredentialsFile: cfg.ServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets exporter: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter", "sheet", cfg.SheetName)
	return exp, nil
}
