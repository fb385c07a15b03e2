package metrics

import (
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// Options carries the inputs that are not part of the ledgers.
type Options struct {
	// StartingBalance seeds the cash-flow running balance.
	StartingBalance decimal.Decimal
	// Now anchors debt due-date priorities. Compute never reads the clock.
	Now time.Time
}

// Metrics is the full set of derived figures for one snapshot.
type Metrics struct {
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
	TotalDebt           decimal.Decimal `json:"total_debt"`
	MonthlyDebtPayments decimal.Decimal `json:"monthly_debt_payments"`
	CashFlow            decimal.Decimal `json:"cash_flow"`
	NetProfit           decimal.Decimal `json:"net_profit"`
	ProfitMargin        decimal.Decimal `json:"profit_margin"`
	ExpenseRatio        decimal.Decimal `json:"expense_ratio"`
	DebtServiceCoverage decimal.Decimal `json:"debt_service_coverage"`
	DebtToRevenue       decimal.Decimal `json:"debt_to_revenue"`
	BurnRate            decimal.Decimal `json:"burn_rate"`
	Runway              Runway          `json:"runway"`
	RunwayStatus        Status          `json:"runway_status"`
	HealthScore         decimal.Decimal `json:"health_score"`
	HealthStatus        Status          `json:"health_status"`
	// NetProfitFromPL reports whether reconciled P&L rows supplied NetProfit.
	NetProfitFromPL bool `json:"net_profit_from_pl"`

	RevenueByCategory  map[string]decimal.Decimal `json:"revenue_by_category"`
	ExpensesByCategory map[string]decimal.Decimal `json:"expenses_by_category"`
	DebtByType         map[string]decimal.Decimal `json:"debt_by_type"`

	CashFlowProjection Projection        `json:"cash_flow_projection"`
	KPIs               KPISummary        `json:"kpis"`
	Debts              DebtSummary       `json:"debts"`
	ProfitLoss         ProfitLossSummary `json:"profit_loss"`

	ComputedAt time.Time `json:"computed_at"`
}

// Compute derives all dashboard metrics from snap.
func Compute(snap core.Snapshot, opts Options) Metrics {
	var m Metrics

	m.TotalRevenue = Sum(snap.Revenue, func(e core.RevenueEntry) decimal.Decimal { return e.Amount })
	m.TotalExpenses = Sum(snap.Expenses, func(e core.ExpenseEntry) decimal.Decimal { return e.Amount })
	m.TotalDebt = Sum(snap.Debts, func(e core.DebtEntry) decimal.Decimal { return e.CurrentBalance })
	m.MonthlyDebtPayments = Sum(snap.Debts, func(e core.DebtEntry) decimal.Decimal { return e.MonthlyPayment })

	m.CashFlowProjection = Project(snap.CashFlow, opts.StartingBalance)
	m.CashFlow = m.CashFlowProjection.TotalInflows.Sub(m.CashFlowProjection.TotalOutflows)

	m.ProfitLoss = SummarizeProfitLoss(snap.ProfitLoss)
	if len(snap.ProfitLoss) > 0 {
		m.NetProfit = m.ProfitLoss.NetProfit
		m.NetProfitFromPL = true
	} else {
		m.NetProfit = m.TotalRevenue.Sub(m.TotalExpenses)
	}
	m.ProfitMargin = ProfitMargin(m.NetProfit, m.TotalRevenue)
	m.ExpenseRatio = ExpenseRatio(m.TotalExpenses, m.TotalRevenue)
	m.DebtServiceCoverage = DebtServiceCoverage(m.NetProfit, m.MonthlyDebtPayments)
	m.DebtToRevenue = DebtToRevenue(m.TotalDebt, m.TotalRevenue)

	m.BurnRate = BurnRate(m.TotalExpenses, m.MonthlyDebtPayments)
	m.Runway = ComputeRunway(m.CashFlow, m.BurnRate)
	m.RunwayStatus = RunwayStatus(m.Runway)

	m.HealthScore = HealthScore(m.ProfitMargin, m.CashFlow, m.TotalDebt, m.NetProfit)
	m.HealthStatus = HealthStatus(m.HealthScore)

	m.RevenueByCategory = Rollup(snap.Revenue,
		func(e core.RevenueEntry) string { return e.Category },
		func(e core.RevenueEntry) decimal.Decimal { return e.Amount },
		UncategorizedKey)
	m.ExpensesByCategory = Rollup(snap.Expenses,
		func(e core.ExpenseEntry) string { return e.Category },
		func(e core.ExpenseEntry) decimal.Decimal { return e.Amount },
		UncategorizedKey)
	m.DebtByType = Rollup(snap.Debts,
		func(e core.DebtEntry) string { return e.Type },
		func(e core.DebtEntry) decimal.Decimal { return e.CurrentBalance },
		OtherDebtType)

	m.KPIs = SummarizeKPIs(snap.KPIs)
	m.Debts = SummarizeDebts(snap.Debts, opts.Now)
	m.ComputedAt = opts.Now
	return m
}
