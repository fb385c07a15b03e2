package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Correction is a field that CoerceSnapshot replaced because it could not
// be used as posted.
type Correction struct {
	Ledger string
	Index  int
	Field  string
	Raw    string
}

type coercionRule struct {
	amounts []string // non-negative
	signed  []string
	dates   []string
}

var coercionRules = map[string]coercionRule{
	"revenue":     {amounts: []string{"amount"}, dates: []string{"date"}},
	"expenses":    {amounts: []string{"amount"}, dates: []string{"date"}},
	"debts":       {amounts: []string{"original_amount", "current_balance", "interest_rate", "monthly_payment"}, dates: []string{"due_date"}},
	"cash_flow":   {amounts: []string{"inflows", "outflows"}},
	"profit_loss": {amounts: []string{"revenue_total", "expenses_total"}},
	"kpis":        {signed: []string{"value", "target"}},
}

// CoerceSnapshot decodes a posted snapshot the way stored rows are read
// back: malformed, empty or negative amounts become zero and unparseable
// dates are cleared. Every replaced field is returned as a Correction.
// Structural problems (bad JSON, unknown ledgers or fields) are errors.
func CoerceSnapshot(raw []byte) (Snapshot, []Correction, error) {
	var doc map[string][]map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Snapshot{}, nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Snapshot{}, nil, errors.New("trailing data")
	}

	var fixes []Correction
	for ledger, rows := range doc {
		rule, ok := coercionRules[ledger]
		if !ok {
			return Snapshot{}, nil, fmt.Errorf("unknown ledger %q", ledger)
		}
		for i, row := range rows {
			if row == nil {
				continue
			}
			fix := func(field string, v any) {
				fixes = append(fixes, Correction{Ledger: ledger, Index: i, Field: field, Raw: rawString(v)})
			}
			for _, f := range rule.amounts {
				if v, present := row[f]; present {
					d, ok := CoerceLedgerAmount(rawString(v))
					if !ok {
						fix(f, v)
					}
					row[f] = d.String()
				}
			}
			for _, f := range rule.signed {
				if v, present := row[f]; present {
					d, ok := CoerceAmount(rawString(v))
					if !ok {
						fix(f, v)
					}
					row[f] = d.String()
				}
			}
			for _, f := range rule.dates {
				v, present := row[f]
				if !present || v == nil {
					continue
				}
				if s, isStr := v.(string); isStr {
					if s == "" {
						continue
					}
					if _, err := ParseDate(s); err == nil {
						continue
					}
				}
				fix(f, v)
				delete(row, f)
			}
		}
	}

	sort.Slice(fixes, func(i, j int) bool {
		a, b := fixes[i], fixes[j]
		if a.Ledger != b.Ledger {
			return a.Ledger < b.Ledger
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Field < b.Field
	})

	normalised, err := json.Marshal(doc)
	if err != nil {
		return Snapshot{}, nil, err
	}
	var snap Snapshot
	dec = json.NewDecoder(bytes.NewReader(normalised))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, nil, err
	}
	return snap, fixes, nil
}

func rawString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
