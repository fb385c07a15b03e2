// Package metrics turns a ledger snapshot into the derived dashboard figures.
//
// Every formula lives here exactly once. Compute is pure: it reads only its
// arguments, never fails and never yields NaN or Inf.
package metrics

import "github.com/shopspring/decimal"

// Health score weights.
var (
	MarginWeight         = decimal.NewFromInt(1)
	CashFlowBonus        = decimal.NewFromInt(20)
	CashFlowPenalty      = decimal.NewFromInt(20)
	DebtBonus            = decimal.NewFromInt(10)
	DebtPenalty          = decimal.NewFromInt(30)
	DebtToProfitMultiple = decimal.NewFromInt(2)

	HealthScoreMin = decimal.Zero
	HealthScoreMax = decimal.NewFromInt(100)
)

// Band thresholds.
var (
	HealthyScore = decimal.NewFromInt(70)
	WarningScore = decimal.NewFromInt(40)

	HealthyRunwayMonths  = decimal.NewFromInt(24)
	ModerateRunwayMonths = decimal.NewFromInt(12)

	// Higher-is-better KPIs: progress at or above these.
	KPIOnTarget = decimal.NewFromInt(100)
	KPIAtRisk   = decimal.NewFromInt(80)
	// Lower-is-better KPIs: progress at or below these.
	KPIOnTargetLower = decimal.NewFromInt(100)
	KPIAtRiskLower   = decimal.NewFromInt(120)
)

// Debt priority windows in days.
const (
	HighPriorityDays   = 7
	MediumPriorityDays = 30
)

const (
	UncategorizedKey = "Uncategorized"
	OtherDebtType    = "Other"
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// Status is a coarse band used for the health score and runway.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusModerate Status = "moderate"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// percentOf returns part/whole*100, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

// ProfitMargin is netProfit as a percentage of revenue, 0 without revenue.
func ProfitMargin(netProfit, totalRevenue decimal.Decimal) decimal.Decimal {
	return percentOf(netProfit, totalRevenue)
}

// ExpenseRatio is expenses as a percentage of revenue, 0 without revenue.
func ExpenseRatio(totalExpenses, totalRevenue decimal.Decimal) decimal.Decimal {
	return percentOf(totalExpenses, totalRevenue)
}

// DebtServiceCoverage is netProfit over a year of debt payments. Without
// debt payments it is 0.
func DebtServiceCoverage(netProfit, monthlyDebtPayments decimal.Decimal) decimal.Decimal {
	annual := monthlyDebtPayments.Mul(monthsPerYear)
	if !annual.IsPositive() {
		return decimal.Zero
	}
	return netProfit.Div(annual)
}

// DebtToRevenue is total debt as a multiple of revenue, 0 without revenue.
func DebtToRevenue(totalDebt, totalRevenue decimal.Decimal) decimal.Decimal {
	if !totalRevenue.IsPositive() {
		return decimal.Zero
	}
	return totalDebt.Div(totalRevenue)
}

// BurnRate is the monthly outflow: expenses plus debt service.
func BurnRate(totalExpenses, monthlyDebtPayments decimal.Decimal) decimal.Decimal {
	return totalExpenses.Add(monthlyDebtPayments)
}

// ComputeRunway returns how many months cashFlow covers burnRate.
// No burn means the runway is unbounded.
func ComputeRunway(cashFlow, burnRate decimal.Decimal) Runway {
	if !burnRate.IsPositive() {
		return Runway{Unbounded: true}
	}
	return Runway{Months: decimal.Max(decimal.Zero, cashFlow.Div(burnRate))}
}

// HealthScore blends margin, cash flow sign and debt load into [0, 100].
func HealthScore(profitMargin, cashFlow, totalDebt, netProfit decimal.Decimal) decimal.Decimal {
	score := profitMargin.Mul(MarginWeight)
	if cashFlow.IsPositive() {
		score = score.Add(CashFlowBonus)
	} else {
		score = score.Sub(CashFlowPenalty)
	}
	if totalDebt.LessThan(netProfit.Mul(DebtToProfitMultiple)) {
		score = score.Add(DebtBonus)
	} else {
		score = score.Sub(DebtPenalty)
	}
	return clamp(score, HealthScoreMin, HealthScoreMax)
}

func HealthStatus(score decimal.Decimal) Status {
	switch {
	case score.GreaterThanOrEqual(HealthyScore):
		return StatusHealthy
	case score.GreaterThanOrEqual(WarningScore):
		return StatusWarning
	default:
		return StatusCritical
	}
}

func RunwayStatus(r Runway) Status {
	switch {
	case r.Unbounded || r.Months.GreaterThan(HealthyRunwayMonths):
		return StatusHealthy
	case r.Months.GreaterThan(ModerateRunwayMonths):
		return StatusModerate
	default:
		return StatusCritical
	}
}
