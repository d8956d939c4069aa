package pricing

import "github.com/shopspring/decimal"

// GrossTotal sums quantity x unit price over lines.
func GrossTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, ln := range lines {
		total = total.Add(ln.Gross())
	}
	return total
}

// EffectiveDiscount clamps an order discount into [0, gross total of lines].
func EffectiveDiscount(totalDiscount decimal.Decimal, lines []Line) decimal.Decimal {
	if totalDiscount.Sign() <= 0 {
		return decimal.Zero
	}
	gross := GrossTotal(lines)
	if gross.Sign() <= 0 {
		return decimal.Zero
	}
	if totalDiscount.GreaterThan(gross) {
		return gross
	}
	return totalDiscount
}

// AllocateDiscount splits an order-level discount across lines in proportion
// to each line's gross value. Every line but the last gets its rounded share;
// the last line takes the remainder so the shares sum exactly to the
// effective discount. The result is aligned with lines.
func AllocateDiscount(totalDiscount decimal.Decimal, lines []Line) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lines))
	for i := range shares {
		shares[i] = decimal.Zero
	}
	discount := EffectiveDiscount(totalDiscount, lines)
	if len(lines) == 0 || discount.IsZero() {
		return shares
	}
	gross := GrossTotal(lines)

	last := len(lines) - 1
	allocated := decimal.Zero
	for i := 0; i < last; i++ {
		share := Round(discount.Mul(lines[i].Gross()).Div(gross))
		shares[i] = share
		allocated = allocated.Add(share)
	}
	shares[last] = nonNegative(discount.Sub(allocated))
	return shares
}
