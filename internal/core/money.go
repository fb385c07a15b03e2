// Package core holds the ledger entry types shared by storage, the
// aggregator and the HTTP layer.
//
// This file contains amount parsing. Strict parsing is used for user input,
// lenient coercion for rows read back from storage.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a non-negative decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for empty or malformed input and
// ErrNegativeAmount for values below zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}

// CoerceAmount normalises a stored amount. Missing or non-numeric values
// become zero and ok is false so the caller can report the bad field.
func CoerceAmount(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CoerceLedgerAmount is CoerceAmount for ledger columns that must not be
// negative. Negative values become zero and ok is false.
func CoerceLedgerAmount(s string) (d decimal.Decimal, ok bool) {
	d, ok = CoerceAmount(s)
	if d.IsNegative() {
		return decimal.Zero, false
	}
	return d, ok
}
