// Package google exports computed dashboards to a Google Sheet, one row per
// recompute.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"finboard/internal/metrics"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Dashboard"

// Config selects the target spreadsheet and the service account used to
// reach it. CredentialsJSON wins over CredentialsFile; when both are empty
// GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// valuesAppender is the slice of the Sheets API the exporter uses.
type valuesAppender interface {
	Append(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) error
}

type Exporter struct {
	values        valuesAppender
	spreadsheetID string
	sheetName     string
}

func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", cfg.SpreadsheetID)
	return newExporter(serviceAppender{svc: svc}, cfg), nil
}

func newExporter(values valuesAppender, cfg Config) *Exporter {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = defaultSheetName
	}
	return &Exporter{values: values, spreadsheetID: cfg.SpreadsheetID, sheetName: name}
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	jsonCreds := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if jsonCreds == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case jsonCreds != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(jsonCreds), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportMetrics appends one summary row for the user.
func (e *Exporter) ExportMetrics(ctx context.Context, userID string, m metrics.Metrics) error {
	rng := fmt.Sprintf("%s!A:J", e.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{metricsRow(userID, m)}}
	if err := e.values.Append(ctx, e.spreadsheetID, rng, vr); err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}

// metricsRow lays out the exported columns: timestamp, user, revenue,
// expenses, net profit, margin, burn rate, runway, health score, status.
func metricsRow(userID string, m metrics.Metrics) []any {
	at := m.ComputedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return []any{
		at.Format(time.RFC3339),
		sheetText(userID),
		m.TotalRevenue.StringFixed(2),
		m.TotalExpenses.StringFixed(2),
		m.NetProfit.StringFixed(2),
		m.ProfitMargin.StringFixed(2),
		m.BurnRate.StringFixed(2),
		m.Runway.String(),
		m.HealthScore.StringFixed(1),
		string(m.HealthStatus),
	}
}

// sheetText keeps caller supplied text from being read as a formula when
// the row is appended with USER_ENTERED.
func sheetText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

type serviceAppender struct {
	svc *gsheet.Service
}

func (a serviceAppender) Append(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) error {
	_, err := a.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}
