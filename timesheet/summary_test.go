package timesheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_PaidUnpaid(t *testing.T) {
	periods := []PayPeriod{
		{ID: "p1", TotalEarnings: 300, TotalDuration: hours(30)},
		{ID: "p2", TotalEarnings: 200, TotalDuration: hours(20)},
	}
	s := DefaultJobSettings()

	before := Summarize(periods, s)
	assert.InDelta(t, 500.0, before.TotalEarnings, 1e-9)
	assert.InDelta(t, 0.0, before.PaidEarnings, 1e-9)
	assert.InDelta(t, 500.0, before.UnpaidEarnings, 1e-9)
	assert.Equal(t, hours(50), before.TotalDuration)

	periods[0].IsPaid = true
	paid := Summarize(periods, s)
	assert.InDelta(t, before.PaidEarnings+300, paid.PaidEarnings, 1e-9)
	assert.InDelta(t, before.UnpaidEarnings-300, paid.UnpaidEarnings, 1e-9)

	periods[0].IsPaid = false
	assert.Equal(t, before, Summarize(periods, s), "marking unpaid reverses exactly")
}

func TestSummarize_TaxAndDeductions(t *testing.T) {
	periods := []PayPeriod{{TotalEarnings: 1000}, {TotalEarnings: 1000}}
	s := DefaultJobSettings()
	s.EstimatedTaxRate = 0.2
	s.Deductions = []Deduction{
		{Label: "union", Kind: DeductionFixed, Amount: 10},
		{Label: "pension", Kind: DeductionPercent, Amount: 5},
	}

	sum := Summarize(periods, s)
	assert.InDelta(t, 400.0, sum.EstimatedTax, 1e-9)
	assert.InDelta(t, 20+100.0, sum.Deductions, 1e-9)
	assert.InDelta(t, 2000-400-120.0, sum.NetEarnings, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil, DefaultJobSettings())
	assert.Equal(t, Summary{}, sum)
}
