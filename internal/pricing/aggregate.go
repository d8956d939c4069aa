package pricing

import "github.com/shopspring/decimal"

// Totals is the order footer.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Aggregate folds priced lines into order totals. The discount is already
// embedded in each line's price before tax so it is reported, not subtracted.
func Aggregate(lines []PricedLine, totalDiscount decimal.Decimal) Totals {
	sumPBT := decimal.Zero
	sumTax := decimal.Zero
	for _, ln := range lines {
		sumPBT = sumPBT.Add(ln.PriceBeforeTax)
		sumTax = sumTax.Add(ln.Tax)
	}
	subtotal := Floor(sumPBT)
	tax := Floor(sumTax)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: Floor(nonNegative(totalDiscount)),
		Total:    nonNegative(subtotal.Add(tax)),
	}
}
