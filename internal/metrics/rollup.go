package metrics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rollup sums amounts per key. Blank keys are grouped under fallback.
func Rollup[T any](items []T, key func(T) string, amount func(T) decimal.Decimal, fallback string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range items {
		k := strings.TrimSpace(key(it))
		if k == "" {
			k = fallback
		}
		out[k] = out[k].Add(amount(it))
	}
	return out
}

// Sum adds up amount over items.
func Sum[T any](items []T, amount func(T) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(amount(it))
	}
	return total
}
