package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

var now = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func TestComputeEmptySnapshot(t *testing.T) {
	m := Compute(core.Snapshot{}, Options{Now: now})

	assertDec(t, "0", m.TotalRevenue)
	assertDec(t, "0", m.TotalExpenses)
	assertDec(t, "0", m.TotalDebt)
	assertDec(t, "0", m.NetProfit)
	assertDec(t, "0", m.ProfitMargin)
	assertDec(t, "0", m.BurnRate)
	assert.True(t, m.Runway.Unbounded)
	assert.Equal(t, StatusHealthy, m.RunwayStatus)
	// 0 margin, -20 cash flow, 0 < 0 is false so -30: clamped to 0.
	assertDec(t, "0", m.HealthScore)
	assert.Equal(t, StatusCritical, m.HealthStatus)
	assert.Empty(t, m.RevenueByCategory)
	assert.Empty(t, m.CashFlowProjection.Rows)
	assertDec(t, "0", m.KPIs.OverallScore)
	assertDec(t, "0", m.Debts.AverageInterestRate)
	assert.False(t, m.ProfitLoss.HasGrowth)
	assert.Equal(t, now, m.ComputedAt)
}

func TestComputeRevenueExpenseScenario(t *testing.T) {
	snap := core.Snapshot{
		Revenue: []core.RevenueEntry{
			{ID: "r1", Category: "Consulting", Amount: dec("30000")},
			{ID: "r2", Category: "Products", Amount: dec("20000")},
		},
		Expenses: []core.ExpenseEntry{
			{ID: "e1", Category: "Payroll", Amount: dec("25000")},
			{ID: "e2", Category: "", Amount: dec("10000")},
		},
	}
	m := Compute(snap, Options{Now: now})

	assertDec(t, "50000", m.TotalRevenue)
	assertDec(t, "35000", m.TotalExpenses)
	assertDec(t, "15000", m.NetProfit)
	assertDec(t, "30", m.ProfitMargin)
	assertDec(t, "70", m.ExpenseRatio)
	assertDec(t, "0", m.DebtServiceCoverage, "no debt payments")
	assertDec(t, "0", m.DebtToRevenue)
	assert.False(t, m.NetProfitFromPL)
	assertDec(t, "10000", m.ExpensesByCategory[UncategorizedKey])
	assertDec(t, "30000", m.RevenueByCategory["Consulting"])
}

func TestComputeTotalDebt(t *testing.T) {
	snap := core.Snapshot{Debts: []core.DebtEntry{
		{ID: "a", Type: "Loan", CurrentBalance: dec("18750"), MonthlyPayment: dec("750")},
		{ID: "b", Type: "Credit Card", CurrentBalance: dec("9200"), MonthlyPayment: dec("500")},
		{ID: "c", Type: "", CurrentBalance: dec("6500"), MonthlyPayment: dec("300")},
	}}
	m := Compute(snap, Options{Now: now})

	assertDec(t, "34450", m.TotalDebt)
	assertDec(t, "1550", m.MonthlyDebtPayments)
	assertDec(t, "6500", m.DebtByType[OtherDebtType])
	assertDec(t, "18750", m.DebtByType["Loan"])
}

func TestComputeRunningBalance(t *testing.T) {
	snap := core.Snapshot{CashFlow: []core.CashFlowEntry{
		{ID: "2", Month: "2024-02", Inflows: dec("12000"), Outflows: dec("9000")},
		{ID: "1", Month: "2024-01", Inflows: dec("10000"), Outflows: dec("8000")},
	}}
	m := Compute(snap, Options{Now: now})

	rows := m.CashFlowProjection.Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01", rows[0].Month)
	assertDec(t, "2000", rows[0].Balance)
	assertDec(t, "5000", rows[1].Balance)
	assertDec(t, "5000", m.CashFlow)
}

func TestComputeRunwayScenario(t *testing.T) {
	snap := core.Snapshot{
		Debts: []core.DebtEntry{
			{ID: "a", CurrentBalance: dec("10000"), MonthlyPayment: dec("1000")},
			{ID: "b", CurrentBalance: dec("5000"), MonthlyPayment: dec("550")},
		},
		CashFlow: []core.CashFlowEntry{{ID: "1", Month: "2024-01", Inflows: dec("5100"), Outflows: dec("2000")}},
	}
	m := Compute(snap, Options{Now: now})

	assertDec(t, "1550", m.BurnRate)
	assertDec(t, "3100", m.CashFlow)
	assert.False(t, m.Runway.Unbounded)
	assertDec(t, "2", m.Runway.Months)
	assert.Equal(t, "2.0", m.Runway.String())
	assert.Equal(t, StatusCritical, m.RunwayStatus)
}

func TestComputeProfitLossPrecedence(t *testing.T) {
	snap := core.Snapshot{
		Revenue:  []core.RevenueEntry{{ID: "r", Amount: dec("50000")}},
		Expenses: []core.ExpenseEntry{{ID: "e", Amount: dec("35000")}},
		ProfitLoss: []core.ProfitLossEntry{
			{ID: "p1", Month: "2024-01", RevenueTotal: dec("1000"), ExpensesTotal: dec("400")},
			{ID: "p2", Month: "2024-02", RevenueTotal: dec("500"), ExpensesTotal: dec("900")},
		},
	}
	m := Compute(snap, Options{Now: now})

	assert.True(t, m.NetProfitFromPL)
	assertDec(t, "200", m.NetProfit)
	// margin still uses ledger revenue: 200 / 50000 * 100
	assertDec(t, "0.4", m.ProfitMargin)
}

func TestComputeDuplicateMonthsAreSummed(t *testing.T) {
	snap := core.Snapshot{CashFlow: []core.CashFlowEntry{
		{ID: "a", Month: "2024-01", Inflows: dec("100"), Outflows: dec("50")},
		{ID: "b", Month: "2024-01", Inflows: dec("200"), Outflows: dec("25")},
	}}
	m := Compute(snap, Options{StartingBalance: dec("10"), Now: now})

	require.Len(t, m.CashFlowProjection.Rows, 1)
	assertDec(t, "300", m.CashFlowProjection.Rows[0].Inflows)
	assertDec(t, "235", m.CashFlowProjection.EndingBalance)
}

func TestFinalBalanceIsOrderIndependent(t *testing.T) {
	entries := []core.CashFlowEntry{
		{ID: "a", Month: "2024-03", Inflows: dec("10"), Outflows: dec("30")},
		{ID: "b", Month: "2023-12", Inflows: dec("500"), Outflows: dec("100")},
		{ID: "c", Month: "2024-01", Inflows: dec("0"), Outflows: dec("75.5")},
	}
	reversed := []core.CashFlowEntry{entries[2], entries[1], entries[0]}
	start := dec("1000")

	p1 := Project(entries, start)
	p2 := Project(reversed, start)

	// start + sum(in - out)
	assertDec(t, "1304.5", p1.EndingBalance)
	assert.True(t, p1.EndingBalance.Equal(p2.EndingBalance))
	assert.Equal(t, "2023-12", p1.Rows[0].Month)
	assert.Equal(t, "2023-12", p2.Rows[0].Month)
}

func TestProfitMarginZeroRevenue(t *testing.T) {
	assertDec(t, "0", ProfitMargin(dec("-500"), decimal.Zero))
	assertDec(t, "0", ProfitMargin(dec("500"), decimal.Zero))
	assertDec(t, "25", ProfitMargin(dec("25"), dec("100")))
}

func TestFinancialRatios(t *testing.T) {
	cases := []struct {
		name       string
		fn         func(a, b decimal.Decimal) decimal.Decimal
		a, b, want string
	}{
		{"expense ratio", ExpenseRatio, "35000", "50000", "70"},
		{"expense ratio without revenue", ExpenseRatio, "35000", "0", "0"},
		{"expense ratio negative revenue", ExpenseRatio, "35000", "-10", "0"},
		{"coverage", DebtServiceCoverage, "60000", "1000", "5"},
		{"coverage with a loss", DebtServiceCoverage, "-12000", "1000", "-1"},
		{"coverage without payments", DebtServiceCoverage, "60000", "0", "0"},
		{"debt to revenue", DebtToRevenue, "30000", "120000", "0.25"},
		{"debt to revenue without revenue", DebtToRevenue, "30000", "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertDec(t, tc.want, tc.fn(dec(tc.a), dec(tc.b)))
		})
	}
}

func TestComputeRatios(t *testing.T) {
	snap := core.Snapshot{
		Revenue:  []core.RevenueEntry{{Amount: dec("120000")}},
		Expenses: []core.ExpenseEntry{{Amount: dec("60000")}},
		Debts:    []core.DebtEntry{{CurrentBalance: dec("30000"), MonthlyPayment: dec("1000")}},
	}
	m := Compute(snap, Options{Now: now})

	assertDec(t, "50", m.ExpenseRatio)
	assertDec(t, "5", m.DebtServiceCoverage)
	assertDec(t, "0.25", m.DebtToRevenue)
}

func TestComputeRunway(t *testing.T) {
	cases := []struct {
		name      string
		cashFlow  string
		burn      string
		unbounded bool
		months    string
	}{
		{"no burn", "100", "0", true, "0"},
		{"negative burn", "100", "-5", true, "0"},
		{"positive", "3000", "1000", false, "3"},
		{"negative cash flow floors at zero", "-3000", "1000", false, "0"},
		{"fractional", "1500", "1000", false, "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ComputeRunway(dec(tc.cashFlow), dec(tc.burn))
			assert.Equal(t, tc.unbounded, r.Unbounded)
			assertDec(t, tc.months, r.Months)
		})
	}
	assert.Equal(t, "infinite", Runway{Unbounded: true}.String())
}

func TestHealthScoreClamped(t *testing.T) {
	cases := []struct {
		name                                    string
		margin, cashFlow, debt, netProfit, want string
	}{
		{"very profitable", "500", "1000", "0", "1000", "100"},
		{"deep loss", "-900", "-1000", "1000000", "-50000", "0"},
		{"mid", "30", "100", "0", "100", "60"},
		{"negative cash flow, high debt", "50", "-1", "100", "10", "0"},
		{"debt just under double profit", "25", "1", "199", "100", "55"},
		{"debt equal to double profit", "25", "1", "200", "100", "15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HealthScore(dec(tc.margin), dec(tc.cashFlow), dec(tc.debt), dec(tc.netProfit))
			assertDec(t, tc.want, got)
			assert.True(t, got.GreaterThanOrEqual(HealthScoreMin) && got.LessThanOrEqual(HealthScoreMax))
		})
	}
}

func TestHealthStatus(t *testing.T) {
	assert.Equal(t, StatusHealthy, HealthStatus(dec("70")))
	assert.Equal(t, StatusWarning, HealthStatus(dec("69.9")))
	assert.Equal(t, StatusWarning, HealthStatus(dec("40")))
	assert.Equal(t, StatusCritical, HealthStatus(dec("39")))
}

func TestRunwayStatus(t *testing.T) {
	assert.Equal(t, StatusHealthy, RunwayStatus(Runway{Unbounded: true}))
	assert.Equal(t, StatusHealthy, RunwayStatus(Runway{Months: dec("25")}))
	assert.Equal(t, StatusModerate, RunwayStatus(Runway{Months: dec("13")}))
	assert.Equal(t, StatusCritical, RunwayStatus(Runway{Months: dec("12")}))
}

func TestMetricsJSON(t *testing.T) {
	snap := core.Snapshot{
		Revenue:  []core.RevenueEntry{{ID: "r", Amount: dec("10")}},
		CashFlow: []core.CashFlowEntry{{ID: "c", Month: "2024-01", Inflows: dec("5")}},
	}
	m := Compute(snap, Options{Now: now})

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var back Metrics
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.NetProfit.Equal(m.NetProfit))
	assert.True(t, back.Runway.Unbounded)
	assert.Equal(t, m.HealthStatus, back.HealthStatus)
	assert.True(t, back.ComputedAt.Equal(now))
}
