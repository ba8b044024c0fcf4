package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// AbsorptionRate is min(100, realization / budget × 100), or 0 when the budget is not positive.
// Rounded to two decimal places.
func AbsorptionRate(budget, realization decimal.Decimal) decimal.Decimal {
	if !budget.IsPositive() {
		return decimal.Zero
	}
	rate := realization.Div(budget).Mul(hundred)
	if rate.GreaterThan(hundred) {
		return hundred
	}
	return rate.Round(2)
}
