package metrics

import (
	"sort"
	"strings"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

type MonthResult struct {
	Month     string          `json:"month"`
	Revenue   decimal.Decimal `json:"revenue"`
	Expenses  decimal.Decimal `json:"expenses"`
	NetProfit decimal.Decimal `json:"net_profit"`
	Margin    decimal.Decimal `json:"margin"`
}

type ProfitLossSummary struct {
	Months        []MonthResult   `json:"months"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	// Growth compares net profit of the two latest months; HasGrowth is
	// false with fewer than two months.
	Growth    decimal.Decimal `json:"growth"`
	HasGrowth bool            `json:"has_growth"`
}

// ProfitGrowth is the month-over-month change of net profit in percent.
// A zero previous month gives 100 for a profit and 0 otherwise.
func ProfitGrowth(previous, latest decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if latest.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return latest.Sub(previous).Div(previous.Abs()).Mul(hundred)
}

// SummarizeProfitLoss merges entries per month and reports them in
// ascending month order.
func SummarizeProfitLoss(entries []core.ProfitLossEntry) ProfitLossSummary {
	byMonth := make(map[string]*MonthResult, len(entries))
	s := ProfitLossSummary{
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
		NetProfit:     decimal.Zero,
		Growth:        decimal.Zero,
	}
	for _, e := range entries {
		month := strings.TrimSpace(e.Month)
		m, ok := byMonth[month]
		if !ok {
			m = &MonthResult{Month: month}
			byMonth[month] = m
		}
		m.Revenue = m.Revenue.Add(e.RevenueTotal)
		m.Expenses = m.Expenses.Add(e.ExpensesTotal)
		s.TotalRevenue = s.TotalRevenue.Add(e.RevenueTotal)
		s.TotalExpenses = s.TotalExpenses.Add(e.ExpensesTotal)
	}
	s.NetProfit = s.TotalRevenue.Sub(s.TotalExpenses)

	s.Months = make([]MonthResult, 0, len(byMonth))
	for _, m := range byMonth {
		m.NetProfit = m.Revenue.Sub(m.Expenses)
		m.Margin = ProfitMargin(m.NetProfit, m.Revenue)
		s.Months = append(s.Months, *m)
	}
	sort.Slice(s.Months, func(i, j int) bool { return s.Months[i].Month < s.Months[j].Month })

	if n := len(s.Months); n >= 2 {
		s.Growth = ProfitGrowth(s.Months[n-2].NetProfit, s.Months[n-1].NetProfit)
		s.HasGrowth = true
	}
	return s
}
