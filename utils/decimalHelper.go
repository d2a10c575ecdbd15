package utils

import "github.com/shopspring/decimal"

var decimalOneHundred = decimal.NewFromInt(100)

// Round2 rounds to 2-decimal currency precision (half away from zero).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// SameAmount compares two amounts at 2-decimal currency precision.
func SameAmount(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}

// TaxExclusiveBase strips an inclusive tax from price: price / (1 + rate/100).
func TaxExclusiveBase(price decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return price.Mul(decimalOneHundred).DivRound(rate.Add(decimalOneHundred), 4)
}

// PercentOf computes amount * rate / 100 exactly. Dividing by 100 is an
// exponent shift, so no intermediate rounding happens; callers round the
// result once at currency precision.
func PercentOf(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Shift(-2)
}
