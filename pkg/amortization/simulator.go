// Package amortization computes equal-installment schedules with interest.
package amortization

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Result is the outcome of a simulation. It is display-only and never persisted.
type Result struct {
	InstallmentAmount   float64
	TotalPayable        float64
	TotalInterest       float64
	ExtraPaidPercentage float64
}

// MonthlyRate converts an annual effective rate in percent to the
// equivalent monthly effective rate as a fraction.
func MonthlyRate(annualRatePercent float64) float64 {
	return math.Pow(1+annualRatePercent/100, 1.0/12) - 1
}

// Simulate computes the equal installment for principal repaid over
// installments months at annualRatePercent. It reports false when the
// principal is not positive, installments < 1, or no rate is configured.
//
//	installment = P * r / (1 - (1+r)^-n)
//
// A zero rate falls back to P / n.
func Simulate(principal float64, installments int, annualRatePercent *float64) (Result, bool) {
	if principal <= 0 || installments < 1 || annualRatePercent == nil {
		return Result{}, false
	}

	n := float64(installments)
	r := MonthlyRate(*annualRatePercent)

	var installment float64
	if r == 0 {
		installment = principal / n
	} else {
		installment = principal * r / (1 - math.Pow(1+r, -n))
	}

	totalPayable := installment * n
	totalInterest := totalPayable - principal

	return Result{
		InstallmentAmount:   round2(installment),
		TotalPayable:        round2(totalPayable),
		TotalInterest:       round2(totalInterest),
		ExtraPaidPercentage: round2(totalInterest / principal * 100),
	}, true
}

// Row is one period of an amortization schedule.
type Row struct {
	Period    int
	DueDate   time.Time
	Payment   decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Balance   decimal.Decimal
}

// Schedule expands a simulation into per-period rows starting one month
// after start. The last period absorbs rounding so the balance reaches zero.
// It returns nil for the same inputs Simulate rejects.
func Schedule(principal float64, installments int, annualRatePercent *float64, start time.Time) []Row {
	res, ok := Simulate(principal, installments, annualRatePercent)
	if !ok {
		return nil
	}

	payment := decimal.NewFromFloat(res.InstallmentAmount)
	rate := decimal.NewFromFloat(MonthlyRate(*annualRatePercent))
	remaining := decimal.NewFromFloat(principal)

	rows := make([]Row, 0, installments)
	for period := 1; period <= installments; period++ {
		interest := remaining.Mul(rate).Round(2)
		principalPart := payment.Sub(interest)

		if period == installments {
			principalPart = remaining
		}

		remaining = remaining.Sub(principalPart)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		rows = append(rows, Row{
			Period:    period,
			DueDate:   addMonths(start, period),
			Payment:   principalPart.Add(interest),
			Principal: principalPart,
			Interest:  interest,
			Balance:   remaining,
		})
	}

	return rows
}

// addMonths moves t forward n months, clamping the day to the target
// month's last day.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
