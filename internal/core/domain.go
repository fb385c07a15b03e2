package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies one of the per-user ledgers.
type Kind string

const (
	KindRevenue    Kind = "revenue"
	KindExpense    Kind = "expense"
	KindDebt       Kind = "debt"
	KindCashFlow   Kind = "cash_flow"
	KindProfitLoss Kind = "profit_loss"
	KindKPI        Kind = "kpi"
)

// Kinds lists every ledger in a stable order.
var Kinds = []Kind{KindRevenue, KindExpense, KindDebt, KindCashFlow, KindProfitLoss, KindKPI}

func (k Kind) IsValid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Direction tells whether a KPI improves by growing or by shrinking.
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

func (d Direction) IsValid() bool {
	return d == HigherIsBetter || d == LowerIsBetter
}

// OrDefault returns HigherIsBetter when no direction was given.
func (d Direction) OrDefault() Direction {
	if d == "" {
		return HigherIsBetter
	}
	return d
}

type (
	RevenueEntry struct {
		ID       string          `json:"id"`
		Date     Date            `json:"date"`
		Client   string          `json:"client"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Notes    string          `json:"notes,omitempty"`
	}

	ExpenseEntry struct {
		ID       string          `json:"id"`
		Date     Date            `json:"date"`
		Vendor   string          `json:"vendor"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Notes    string          `json:"notes,omitempty"`
	}

	DebtEntry struct {
		ID             string          `json:"id"`
		Creditor       string          `json:"creditor"`
		Type           string          `json:"type"`
		OriginalAmount decimal.Decimal `json:"original_amount"`
		CurrentBalance decimal.Decimal `json:"current_balance"`
		InterestRate   decimal.Decimal `json:"interest_rate"`
		MonthlyPayment decimal.Decimal `json:"monthly_payment"`
		DueDate        Date            `json:"due_date"`
		Notes          string          `json:"notes,omitempty"`
	}

	CashFlowEntry struct {
		ID       string          `json:"id"`
		Month    string          `json:"month"` // YYYY-MM
		Inflows  decimal.Decimal `json:"inflows"`
		Outflows decimal.Decimal `json:"outflows"`
	}

	// ProfitLossEntry is a manually reconciled monthly summary. When any exist
	// they take precedence over the ledger sums for net profit.
	ProfitLossEntry struct {
		ID            string          `json:"id"`
		Month         string          `json:"month"`
		RevenueTotal  decimal.Decimal `json:"revenue_total"`
		ExpensesTotal decimal.Decimal `json:"expenses_total"`
	}

	KpiEntry struct {
		ID         string          `json:"id"`
		MetricName string          `json:"metric_name"`
		Category   string          `json:"category"`
		Value      decimal.Decimal `json:"value"`
		Target     decimal.Decimal `json:"target"`
		Direction  Direction       `json:"direction"`
	}

	// Snapshot is a read-only, point-in-time view of all ledgers of one user.
	Snapshot struct {
		Revenue    []RevenueEntry    `json:"revenue"`
		Expenses   []ExpenseEntry    `json:"expenses"`
		Debts      []DebtEntry       `json:"debts"`
		CashFlow   []CashFlowEntry   `json:"cash_flow"`
		ProfitLoss []ProfitLossEntry `json:"profit_loss"`
		KPIs       []KpiEntry        `json:"kpis"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrInvalidMonth     = errors.New("invalid month, expected YYYY-MM")
	ErrEmptyDate        = errors.New("date cannot be empty")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrInvalidDirection = errors.New("invalid kpi direction")
	ErrInvalidKind      = errors.New("invalid ledger kind")
)

const maxTextLen = 200

func validateText(field, v string, required bool) error {
	if required && strings.TrimSpace(v) == "" {
		return errors.Join(ErrEmptyName, errors.New(field+" is required"))
	}
	if len(v) > maxTextLen {
		return errors.New(field + " too long (max 200 characters)")
	}
	return nil
}

func validateAmounts(vals ...decimal.Decimal) error {
	for _, v := range vals {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}

func (e RevenueEntry) Validate() error {
	if e.Date.IsZero() {
		return ErrEmptyDate
	}
	if err := validateText("client", e.Client, true); err != nil {
		return err
	}
	if err := validateText("category", e.Category, false); err != nil {
		return err
	}
	return validateAmounts(e.Amount)
}

func (e ExpenseEntry) Validate() error {
	if e.Date.IsZero() {
		return ErrEmptyDate
	}
	if err := validateText("vendor", e.Vendor, true); err != nil {
		return err
	}
	if err := validateText("category", e.Category, false); err != nil {
		return err
	}
	return validateAmounts(e.Amount)
}

// Validate does not enforce CurrentBalance <= OriginalAmount: refinanced
// debts legitimately grow past the original principal.
func (e DebtEntry) Validate() error {
	if err := validateText("creditor", e.Creditor, true); err != nil {
		return err
	}
	if err := validateText("type", e.Type, false); err != nil {
		return err
	}
	if e.DueDate.IsZero() {
		return ErrEmptyDate
	}
	return validateAmounts(e.OriginalAmount, e.CurrentBalance, e.InterestRate, e.MonthlyPayment)
}

func (e CashFlowEntry) Validate() error {
	if _, err := ParseMonth(e.Month); err != nil {
		return err
	}
	return validateAmounts(e.Inflows, e.Outflows)
}

func (e ProfitLossEntry) Validate() error {
	if _, err := ParseMonth(e.Month); err != nil {
		return err
	}
	return validateAmounts(e.RevenueTotal, e.ExpensesTotal)
}

func (e KpiEntry) Validate() error {
	if err := validateText("metric_name", e.MetricName, true); err != nil {
		return err
	}
	if err := validateText("category", e.Category, false); err != nil {
		return err
	}
	if !e.Direction.OrDefault().IsValid() {
		return ErrInvalidDirection
	}
	return nil
}

// ParseMonth parses a YYYY-MM month label.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return t, nil
}
