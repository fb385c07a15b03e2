package metrics

import (
	"sort"
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type DebtDetail struct {
	ID             string          `json:"id"`
	Creditor       string          `json:"creditor"`
	Type           string          `json:"type"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	PayoffProgress decimal.Decimal `json:"payoff_progress"`
	DueDate        core.Date       `json:"due_date"`
	DaysUntilDue   int             `json:"days_until_due"`
	Priority       Priority        `json:"priority"`
}

type DebtSummary struct {
	Items               []DebtDetail    `json:"items"`
	AverageInterestRate decimal.Decimal `json:"average_interest_rate"`
	High                int             `json:"high"`
	Medium              int             `json:"medium"`
	Low                 int             `json:"low"`
}

// DebtPriority ranks a debt by how soon it is due. Overdue debts are high.
func DebtPriority(daysUntilDue int) Priority {
	switch {
	case daysUntilDue <= HighPriorityDays:
		return PriorityHigh
	case daysUntilDue <= MediumPriorityDays:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// PayoffProgress is the share of the original principal already repaid.
func PayoffProgress(original, current decimal.Decimal) decimal.Decimal {
	return percentOf(original.Sub(current), original)
}

// SummarizeDebts lists debts soonest-due first, relative to now.
func SummarizeDebts(entries []core.DebtEntry, now time.Time) DebtSummary {
	s := DebtSummary{Items: make([]DebtDetail, 0, len(entries)), AverageInterestRate: decimal.Zero}
	if len(entries) == 0 {
		return s
	}
	rates := decimal.Zero
	for _, e := range entries {
		days := e.DueDate.DaysUntil(now)
		p := DebtPriority(days)
		switch p {
		case PriorityHigh:
			s.High++
		case PriorityMedium:
			s.Medium++
		default:
			s.Low++
		}
		rates = rates.Add(e.InterestRate)
		s.Items = append(s.Items, DebtDetail{
			ID:             e.ID,
			Creditor:       e.Creditor,
			Type:           e.Type,
			CurrentBalance: e.CurrentBalance,
			MonthlyPayment: e.MonthlyPayment,
			InterestRate:   e.InterestRate,
			PayoffProgress: PayoffProgress(e.OriginalAmount, e.CurrentBalance),
			DueDate:        e.DueDate,
			DaysUntilDue:   days,
			Priority:       p,
		})
	}
	s.AverageInterestRate = rates.Div(decimal.NewFromInt(int64(len(entries))))
	sort.SliceStable(s.Items, func(i, j int) bool {
		if s.Items[i].DaysUntilDue != s.Items[j].DaysUntilDue {
			return s.Items[i].DaysUntilDue < s.Items[j].DaysUntilDue
		}
		return s.Items[i].ID < s.Items[j].ID
	})
	return s
}
