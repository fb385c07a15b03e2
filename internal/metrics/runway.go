package metrics

import "github.com/shopspring/decimal"

// Runway is the number of months cash lasts at the current burn rate.
// Unbounded marks the "no burn" case; Months is zero then.
type Runway struct {
	Months    decimal.Decimal `json:"months"`
	Unbounded bool            `json:"unbounded"`
}

func (r Runway) String() string {
	if r.Unbounded {
		return "infinite"
	}
	return r.Months.StringFixed(1)
}
