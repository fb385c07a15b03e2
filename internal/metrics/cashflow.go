package metrics

import (
	"sort"
	"strings"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

type ProjectionRow struct {
	Month    string          `json:"month"`
	Inflows  decimal.Decimal `json:"inflows"`
	Outflows decimal.Decimal `json:"outflows"`
	Net      decimal.Decimal `json:"net"`
	Balance  decimal.Decimal `json:"balance"`
}

// Projection is the month-by-month running cash balance.
type Projection struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	Rows            []ProjectionRow `json:"rows"`
	TotalInflows    decimal.Decimal `json:"total_inflows"`
	TotalOutflows   decimal.Decimal `json:"total_outflows"`
	EndingBalance   decimal.Decimal `json:"ending_balance"`
}

// Project computes the running balance over entries in ascending month
// order. Entries sharing a month are merged into one row.
func Project(entries []core.CashFlowEntry, startingBalance decimal.Decimal) Projection {
	byMonth := make(map[string]*ProjectionRow, len(entries))
	for _, e := range entries {
		month := strings.TrimSpace(e.Month)
		row, ok := byMonth[month]
		if !ok {
			row = &ProjectionRow{Month: month}
			byMonth[month] = row
		}
		row.Inflows = row.Inflows.Add(e.Inflows)
		row.Outflows = row.Outflows.Add(e.Outflows)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	// YYYY-MM labels sort chronologically as strings.
	sort.Strings(months)

	p := Projection{
		StartingBalance: startingBalance,
		Rows:            make([]ProjectionRow, 0, len(months)),
		TotalInflows:    decimal.Zero,
		TotalOutflows:   decimal.Zero,
	}
	balance := startingBalance
	for _, m := range months {
		row := byMonth[m]
		row.Net = row.Inflows.Sub(row.Outflows)
		balance = balance.Add(row.Net)
		row.Balance = balance
		p.TotalInflows = p.TotalInflows.Add(row.Inflows)
		p.TotalOutflows = p.TotalOutflows.Add(row.Outflows)
		p.Rows = append(p.Rows, *row)
	}
	p.EndingBalance = balance
	return p
}
