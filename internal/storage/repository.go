package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var tables = map[core.Kind]string{
	core.KindRevenue:    "revenue_entries",
	core.KindExpense:    "expense_entries",
	core.KindDebt:       "debt_entries",
	core.KindCashFlow:   "cash_flow_entries",
	core.KindProfitLoss: "profit_loss_entries",
	core.KindKPI:        "kpi_entries",
}

// LoadSnapshot implements ledger.SnapshotReader. All six ledgers are read
// inside one transaction so the snapshot is consistent.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, userID string) (core.Snapshot, error) {
	var snap core.Snapshot

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return snap, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if snap.Revenue, err = r.loadRevenue(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.Expenses, err = r.loadExpenses(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.Debts, err = r.loadDebts(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.CashFlow, err = r.loadCashFlow(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.ProfitLoss, err = r.loadProfitLoss(ctx, tx, userID); err != nil {
		return snap, err
	}
	if snap.KPIs, err = r.loadKPIs(ctx, tx, userID); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *SQLiteRepository) loadRevenue(ctx context.Context, tx *sql.Tx, userID string) ([]core.RevenueEntry, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, entry_date, client, category, amount, notes
		FROM revenue_entries WHERE user_id = ? ORDER BY entry_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query revenue: %w", err)
	}
	defer rows.Close()

	var out []core.RevenueEntry
	for rows.Next() {
		var e core.RevenueEntry
		var date, amount sql.NullString
		if err := rows.Scan(&e.ID, &date, &e.Client, &e.Category, &amount, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan revenue: %w", err)
		}
		rd := rowDecoder{ctx: ctx, table: "revenue_entries", id: e.ID}
		e.Date = rd.date("entry_date", date)
		e.Amount = rd.amount("amount", amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadExpenses(ctx context.Context, tx *sql.Tx, userID string) ([]core.ExpenseEntry, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, entry_date, vendor, category, amount, notes
		FROM expense_entries WHERE user_id = ? ORDER BY entry_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseEntry
	for rows.Next() {
		var e core.ExpenseEntry
		var date, amount sql.NullString
		if err := rows.Scan(&e.ID, &date, &e.Vendor, &e.Category, &amount, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		rd := rowDecoder{ctx: ctx, table: "expense_entries", id: e.ID}
		e.Date = rd.date("entry_date", date)
		e.Amount = rd.amount("amount", amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadDebts(ctx context.Context, tx *sql.Tx, userID string) ([]core.DebtEntry, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, creditor, debt_type, original_amount, current_balance,
		interest_rate, monthly_payment, due_date, notes
		FROM debt_entries WHERE user_id = ? ORDER BY due_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query debts: %w", err)
	}
	defer rows.Close()

	var out []core.DebtEntry
	for rows.Next() {
		var e core.DebtEntry
		var original, current, rate, payment, due sql.NullString
		if err := rows.Scan(&e.ID, &e.Creditor, &e.Type, &original, &current, &rate, &payment, &due, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		rd := rowDecoder{ctx: ctx, table: "debt_entries", id: e.ID}
		e.OriginalAmount = rd.amount("original_amount", original)
		e.CurrentBalance = rd.amount("current_balance", current)
		e.InterestRate = rd.amount("interest_rate", rate)
		e.MonthlyPayment = rd.amount("monthly_payment", payment)
		e.DueDate = rd.date("due_date", due)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadCashFlow(ctx context.Context, tx *sql.Tx, userID string) ([]core.CashFlowEntry, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, month, inflows, outflows
		FROM cash_flow_entries WHERE user_id = ? ORDER BY month, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cash flow: %w", err)
	}
	defer rows.Close()

	var out []core.CashFlowEntry
	for rows.Next() {
		var e core.CashFlowEntry
		var in, outflows sql.NullString
		if err := rows.Scan(&e.ID, &e.Month, &in, &outflows); err != nil {
			return nil, fmt.Errorf("scan cash flow: %w", err)
		}
		rd := rowDecoder{ctx: ctx, table: "cash_flow_entries", id: e.ID}
		e.Inflows = rd.amount("inflows", in)
		e.Outflows = rd.amount("outflows", outflows)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadProfitLoss(ctx context.Context, tx *sql.Tx, userID string) ([]core.ProfitLossEntry, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, month, revenue_total, expenses_total
		FROM profit_loss_entries WHERE user_id = ? ORDER BY month, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query profit/loss: %w", err)
	}
	defer rows.Close()

	var out []core.ProfitLossEntry
	for rows.Next() {
		var e core.ProfitLossEntry
		var rev, exp sql.NullString
		if err := rows.Scan(&e.ID, &e.Month, &rev, &exp); err != nil {
			return nil, fmt.Errorf("scan profit/loss: %w", err)
		}
		rd := rowDecoder{ctx: ctx, table: "profit_loss_entries", id: e.ID}
		e.RevenueTotal = rd.amount("revenue_total", rev)
		e.ExpensesTotal = rd.amount("expenses_total", exp)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadKPIs(ctx context.Context, tx *sql.Tx, userID string) ([]core.KpiEntry, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, metric_name, category, value, target, direction
		FROM kpi_entries WHERE user_id = ? ORDER BY metric_name, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query kpis: %w", err)
	}
	defer rows.Close()

	var out []core.KpiEntry
	for rows.Next() {
		var e core.KpiEntry
		var value, target sql.NullString
		var dir string
		if err := rows.Scan(&e.ID, &e.MetricName, &e.Category, &value, &target, &dir); err != nil {
			return nil, fmt.Errorf("scan kpi: %w", err)
		}
		rd := rowDecoder{ctx: ctx, table: "kpi_entries", id: e.ID}
		e.Value = rd.signed("value", value)
		e.Target = rd.signed("target", target)
		e.Direction = core.Direction(dir).OrDefault()
		out = append(out, e)
	}
	return out, rows.Err()
}

// rowDecoder coerces stored text columns, logging every value it had to
// replace with a zero.
type rowDecoder struct {
	ctx   context.Context
	table string
	id    string
}

// amount reads a column that must not be negative.
func (d rowDecoder) amount(field string, raw sql.NullString) decimal.Decimal {
	return d.coerce(field, raw, core.CoerceLedgerAmount)
}

func (d rowDecoder) signed(field string, raw sql.NullString) decimal.Decimal {
	return d.coerce(field, raw, core.CoerceAmount)
}

func (d rowDecoder) coerce(field string, raw sql.NullString, fn func(string) (decimal.Decimal, bool)) decimal.Decimal {
	v, ok := fn(raw.String)
	if !ok {
		slog.WarnContext(d.ctx, "Invalid amount coerced to zero",
			"table", d.table, "id", d.id, "field", field, "raw", raw.String)
	}
	return v
}

func (d rowDecoder) date(field string, raw sql.NullString) core.Date {
	v, err := core.ParseDate(raw.String)
	if err != nil {
		slog.WarnContext(d.ctx, "Invalid date ignored",
			"table", d.table, "id", d.id, "field", field, "raw", raw.String)
		return core.Date{}
	}
	return v
}

// save runs the insert when id is empty and the update otherwise. Both
// statements take the row values followed by id and user_id.
func (r *SQLiteRepository) save(ctx context.Context, table, id, userID, insert, update string, args ...any) (string, error) {
	if id == "" {
		id = uuid.NewString()
		if _, err := r.db.ExecContext(ctx, insert, append(args, id, userID)...); err != nil {
			return "", fmt.Errorf("insert %s: %w", table, err)
		}
		return id, nil
	}
	res, err := r.db.ExecContext(ctx, update, append(args, id, userID)...)
	if err != nil {
		return "", fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", table, err)
	}
	if n == 0 {
		return "", ledger.ErrNotFound
	}
	return id, nil
}

func (r *SQLiteRepository) SaveRevenue(ctx context.Context, userID string, e core.RevenueEntry) (core.RevenueEntry, error) {
	id, err := r.save(ctx, "revenue_entries", e.ID, userID,
		`INSERT INTO revenue_entries (entry_date, client, category, amount, notes, id, user_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`UPDATE revenue_entries SET entry_date = ?, client = ?, category = ?, amount = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		e.Date.String(), e.Client, e.Category, e.Amount.String(), e.Notes)
	if err != nil {
		return e, err
	}
	e.ID = id
	slog.InfoContext(ctx, "Revenue entry saved", "id", id, "user_id", userID, "amount", e.Amount.String())
	return e, nil
}

func (r *SQLiteRepository) SaveExpense(ctx context.Context, userID string, e core.ExpenseEntry) (core.ExpenseEntry, error) {
	id, err := r.save(ctx, "expense_entries", e.ID, userID,
		`INSERT INTO expense_entries (entry_date, vendor, category, amount, notes, id, user_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`UPDATE expense_entries SET entry_date = ?, vendor = ?, category = ?, amount = ?, notes = ?,
			updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		e.Date.String(), e.Vendor, e.Category, e.Amount.String(), e.Notes)
	if err != nil {
		return e, err
	}
	e.ID = id
	slog.InfoContext(ctx, "Expense entry saved", "id", id, "user_id", userID, "amount", e.Amount.String())
	return e, nil
}

func (r *SQLiteRepository) SaveDebt(ctx context.Context, userID string, e core.DebtEntry) (core.DebtEntry, error) {
	id, err := r.save(ctx, "debt_entries", e.ID, userID,
		`INSERT INTO debt_entries (creditor, debt_type, original_amount, current_balance, interest_rate,
			monthly_payment, due_date, notes, id, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		`UPDATE debt_entries SET creditor = ?, debt_type = ?, original_amount = ?, current_balance = ?,
			interest_rate = ?, monthly_payment = ?, due_date = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND user_id = ?`,
		e.Creditor, e.Type, e.OriginalAmount.String(), e.CurrentBalance.String(), e.InterestRate.String(),
		e.MonthlyPayment.String(), e.DueDate.String(), e.Notes)
	if err != nil {
		return e, err
	}
	e.ID = id
	slog.InfoContext(ctx, "Debt entry saved", "id", id, "user_id", userID, "balance", e.CurrentBalance.String())
	return e, nil
}

func (r *SQLiteRepository) SaveCashFlow(ctx context.Context, userID string, e core.CashFlowEntry) (core.CashFlowEntry, error) {
	id, err := r.save(ctx, "cash_flow_entries", e.ID, userID,
		`INSERT INTO cash_flow_entries (month, inflows, outflows, id, user_id) VALUES (?, ?, ?, ?, ?)`,
		`UPDATE cash_flow_entries SET month = ?, inflows = ?, outflows = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND user_id = ?`,
		e.Month, e.Inflows.String(), e.Outflows.String())
	if err != nil {
		return e, err
	}
	e.ID = id
	slog.InfoContext(ctx, "Cash flow entry saved", "id", id, "user_id", userID, "month", e.Month)
	return e, nil
}

func (r *SQLiteRepository) SaveProfitLoss(ctx context.Context, userID string, e core.ProfitLossEntry) (core.ProfitLossEntry, error) {
	id, err := r.save(ctx, "profit_loss_entries", e.ID, userID,
		`INSERT INTO profit_loss_entries (month, revenue_total, expenses_total, id, user_id) VALUES (?, ?, ?, ?, ?)`,
		`UPDATE profit_loss_entries SET month = ?, revenue_total = ?, expenses_total = ?,
			updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		e.Month, e.RevenueTotal.String(), e.ExpensesTotal.String())
	if err != nil {
		return e, err
	}
	e.ID = id
	slog.InfoContext(ctx, "Profit/loss entry saved", "id", id, "user_id", userID, "month", e.Month)
	return e, nil
}

func (r *SQLiteRepository) SaveKPI(ctx context.Context, userID string, e core.KpiEntry) (core.KpiEntry, error) {
	e.Direction = e.Direction.OrDefault()
	id, err := r.save(ctx, "kpi_entries", e.ID, userID,
		`INSERT INTO kpi_entries (metric_name, category, value, target, direction, id, user_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`UPDATE kpi_entries SET metric_name = ?, category = ?, value = ?, target = ?, direction = ?,
			updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		e.MetricName, e.Category, e.Value.String(), e.Target.String(), string(e.Direction))
	if err != nil {
		return e, err
	}
	e.ID = id
	slog.InfoContext(ctx, "KPI entry saved", "id", id, "user_id", userID, "metric", e.MetricName)
	return e, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, userID string, kind core.Kind, id string) error {
	table, ok := tables[kind]
	if !ok {
		return core.ErrInvalidKind
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	slog.InfoContext(ctx, "Ledger entry deleted", "table", table, "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM revenue_entries
		UNION SELECT user_id FROM expense_entries
		UNION SELECT user_id FROM debt_entries
		UNION SELECT user_id FROM cash_flow_entries
		UNION SELECT user_id FROM profit_loss_entries
		UNION SELECT user_id FROM kpi_entries
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveDashboard(ctx context.Context, userID string, m metrics.Metrics) error {
	blob, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	computedAt := m.ComputedAt
	if computedAt.IsZero() {
		computedAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO dashboard_snapshots (user_id, metrics, computed_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET metrics = excluded.metrics, computed_at = excluded.computed_at`,
		userID, string(blob), computedAt)
	if err != nil {
		return fmt.Errorf("save dashboard: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LoadDashboard(ctx context.Context, userID string) (metrics.Metrics, error) {
	var m metrics.Metrics
	var blob string
	err := r.db.QueryRowContext(ctx, `SELECT metrics FROM dashboard_snapshots WHERE user_id = ?`, userID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ledger.ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("load dashboard: %w", err)
	}
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return m, fmt.Errorf("decode dashboard: %w", err)
	}
	return m, nil
}
