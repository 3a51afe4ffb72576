package utils

import "github.com/shopspring/decimal"

// Money rounds an amount to 2 decimal places (currency minor units).
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes quantity x unit price in minor units.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}
