package timesheet

// Summary aggregates earnings across pay periods
type Summary struct {
	TotalDuration  int64   `json:"total_duration"`
	TotalEarnings  float64 `json:"total_earnings"`
	PaidEarnings   float64 `json:"paid_earnings"`
	UnpaidEarnings float64 `json:"unpaid_earnings"`
	EstimatedTax   float64 `json:"estimated_tax"`
	Deductions     float64 `json:"deductions"`
	NetEarnings    float64 `json:"net_earnings"`
}

// Summarize totals periods. Unpaid earnings are the total minus paid,
// floored at zero. Tax is estimated on gross; fixed deductions apply once
// per period and percent deductions to gross. Net is floored at zero.
func Summarize(periods []PayPeriod, s JobSettings) Summary {
	var sum Summary
	for _, p := range periods {
		sum.TotalDuration += p.TotalDuration
		sum.TotalEarnings += p.TotalEarnings
		if p.IsPaid {
			sum.PaidEarnings += p.TotalEarnings
		}
	}

	sum.UnpaidEarnings = sum.TotalEarnings - sum.PaidEarnings
	if sum.UnpaidEarnings < 0 {
		sum.UnpaidEarnings = 0
	}

	sum.EstimatedTax = sum.TotalEarnings * s.EstimatedTaxRate
	for _, d := range s.Deductions {
		switch d.Kind {
		case DeductionFixed:
			sum.Deductions += d.Amount * float64(len(periods))
		case DeductionPercent:
			sum.Deductions += sum.TotalEarnings * d.Amount / 100
		}
	}

	sum.NetEarnings = sum.TotalEarnings - sum.EstimatedTax - sum.Deductions
	if sum.NetEarnings < 0 {
		sum.NetEarnings = 0
	}
	return sum
}
