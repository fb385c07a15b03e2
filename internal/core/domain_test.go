package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRevenueEntryValidate(t *testing.T) {
	good := RevenueEntry{Date: NewDate(2024, 1, 5), Client: "Acme", Category: "Consulting", Amount: d("100")}
	require.NoError(t, good.Validate())

	bads := []RevenueEntry{
		{Client: "Acme", Amount: d("1")},
		{Date: NewDate(2024, 1, 5), Client: " ", Amount: d("1")},
		{Date: NewDate(2024, 1, 5), Client: "Acme", Amount: d("-1")},
	}
	for i, e := range bads {
		assert.Error(t, e.Validate(), "case %d", i)
	}
}

func TestDebtEntryValidate(t *testing.T) {
	good := DebtEntry{
		Creditor:       "Bank",
		Type:           "Loan",
		OriginalAmount: d("1000"),
		CurrentBalance: d("1200"),
		MonthlyPayment: d("50"),
		DueDate:        NewDate(2024, 2, 1),
	}
	assert.NoError(t, good.Validate(), "balance above original is allowed")

	bad := good
	bad.InterestRate = d("-0.5")
	assert.ErrorIs(t, bad.Validate(), ErrNegativeAmount)

	bad = good
	bad.DueDate = Date{}
	assert.ErrorIs(t, bad.Validate(), ErrEmptyDate)
}

func TestMonthValidation(t *testing.T) {
	assert.NoError(t, CashFlowEntry{Month: "2024-01"}.Validate())
	assert.ErrorIs(t, CashFlowEntry{Month: "2024-13"}.Validate(), ErrInvalidMonth)
	assert.ErrorIs(t, ProfitLossEntry{Month: "January"}.Validate(), ErrInvalidMonth)
	assert.ErrorIs(t, CashFlowEntry{Month: "2024-01", Outflows: d("-1")}.Validate(), ErrNegativeAmount)
}

func TestKpiEntryDirection(t *testing.T) {
	k := KpiEntry{MetricName: "Customer acquisition cost", Value: d("10"), Target: d("20")}
	require.NoError(t, k.Validate())
	assert.Equal(t, HigherIsBetter, k.Direction.OrDefault(), "no guessing from the name")

	k.Direction = "sideways"
	assert.ErrorIs(t, k.Validate(), ErrInvalidDirection)

	k.Direction = LowerIsBetter
	assert.NoError(t, k.Validate())
}

func TestKindIsValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.IsValid(), string(k))
	}
	assert.False(t, Kind("notes").IsValid())
}

func TestDateJSON(t *testing.T) {
	var e RevenueEntry
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-03-15","client":"A","amount":"12.50"}`), &e))
	assert.Equal(t, NewDate(2024, 3, 15), e.Date)
	assert.True(t, e.Amount.Equal(d("12.5")))

	out, err := json.Marshal(e.Date)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-03-15"`, string(out))

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"15/03/2024"`), &empty))
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		due  Date
		want int
	}{
		{NewDate(2024, 1, 10), 5},
		{NewDate(2024, 1, 6), 1},
		{NewDate(2024, 1, 5), 0},
		{NewDate(2024, 1, 3), -2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.due.DaysUntil(now), tc.due.String())
	}
}
