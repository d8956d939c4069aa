package pricing

import "github.com/shopspring/decimal"

// Line is the pricing input for a single order line.
type Line struct {
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	TaxRatePercent decimal.Decimal `json:"taxRatePercent"`
}

// Gross returns quantity x unit price before any discount or tax.
func (l Line) Gross() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// LineAmounts holds the computed monetary fields of a line.
type LineAmounts struct {
	PriceBeforeTax decimal.Decimal `json:"priceBeforeTax"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
}

// ComputeLine derives the price before tax, tax and total of one line given
// its allocated discount. It never fails: a zero quantity yields zero amounts
// and negative intermediate values are clamped to zero.
func ComputeLine(qty, unitPrice, taxRatePercent, discount decimal.Decimal, mode TaxMode) LineAmounts {
	qty = nonNegative(qty)
	if taxRatePercent.Sign() <= 0 {
		pbt := nonNegative(Round(qty.Mul(unitPrice).Sub(discount)))
		return LineAmounts{PriceBeforeTax: pbt, Tax: decimal.Zero, Total: pbt}
	}
	rate := taxRatePercent.Div(hundred)

	if mode == TaxInclusive {
		perUnit := decimal.Zero
		if !qty.IsZero() {
			perUnit = discount.Div(qty)
		}
		gross := nonNegative(unitPrice.Sub(perUnit)).Mul(qty)
		pbt := nonNegative(Round(gross.Div(one.Add(rate))))
		// tax absorbs the rounding so that pbt + tax equals the rounded gross
		tax := nonNegative(Round(gross).Sub(pbt))
		return LineAmounts{PriceBeforeTax: pbt, Tax: tax, Total: pbt.Add(tax)}
	}

	pbt := nonNegative(Round(qty.Mul(unitPrice).Sub(discount)))
	tax := Round(pbt.Mul(rate))
	return LineAmounts{PriceBeforeTax: pbt, Tax: tax, Total: pbt.Add(tax)}
}
