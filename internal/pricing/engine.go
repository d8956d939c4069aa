package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/obs"
)

// PricedLine is a line together with its allocated discount and amounts.
type PricedLine struct {
	Line
	Discount decimal.Decimal `json:"discount"`
	LineAmounts
}

// Result is the output of a full pricing pass.
type Result struct {
	Mode   string       `json:"taxMode"`
	Lines  []PricedLine `json:"lines"`
	Totals Totals       `json:"totals"`
}

// Compute runs allocation, line calculation and aggregation over lines in the
// given order. The same order must be used for every pass over the same set.
func Compute(lines []Line, totalDiscount Money, mode TaxMode) Result {
	discount := EffectiveDiscount(totalDiscount, lines)
	shares := AllocateDiscount(discount, lines)

	priced := make([]PricedLine, len(lines))
	for i, ln := range lines {
		priced[i] = PricedLine{
			Line:        ln,
			Discount:    shares[i],
			LineAmounts: ComputeLine(ln.Quantity, ln.UnitPrice, ln.TaxRatePercent, shares[i], mode),
		}
	}
	if obs.PricingPassesTotal != nil {
		obs.PricingPassesTotal.WithLabelValues(mode.String()).Inc()
	}
	return Result{Mode: mode.String(), Lines: priced, Totals: Aggregate(priced, discount)}
}
