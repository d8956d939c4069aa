package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value in the store currency. Persisted amounts
// are whole currency units.
type Money = decimal.Decimal

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
	one     = decimal.NewFromInt(1)
)

// Round rounds half up to the nearest whole currency unit. Every line level
// amount and every discount share is rounded through this function.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// Floor truncates to a whole currency unit. Only the order footer uses it.
func Floor(d decimal.Decimal) decimal.Decimal {
	return d.Floor()
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}

// TaxMode selects how a line's tax rate relates to its unit price.
type TaxMode int

const (
	// TaxExclusive adds tax on top of the unit price.
	TaxExclusive TaxMode = iota
	// TaxInclusive treats the unit price as already containing tax.
	TaxInclusive
)

// ModeFor maps the store-wide "price includes tax" flag to a TaxMode.
func ModeFor(priceIncludesTax bool) TaxMode {
	if priceIncludesTax {
		return TaxInclusive
	}
	return TaxExclusive
}

func (m TaxMode) String() string {
	if m == TaxInclusive {
		return "inclusive"
	}
	return "exclusive"
}
