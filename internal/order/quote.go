package order

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// QuoteHandler serves POST /pricing/quote: a stateless pricing pass used by
// tills to preview totals before saving.
type QuoteHandler struct {
	Modes ModeSource
}

type quoteLine struct {
	Quantity       decimal.Decimal `json:"quantity" validate:"gte=0"`
	UnitPrice      decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	TaxRatePercent decimal.Decimal `json:"taxRatePercent" validate:"gte=0,lte=100"`
}

type quoteRequest struct {
	Discount decimal.Decimal `json:"discount" validate:"gte=0"`
	// TaxMode overrides the store setting when set.
	TaxMode string      `json:"taxMode,omitempty" validate:"omitempty,oneof=inclusive exclusive"`
	Items   []quoteLine `json:"items" validate:"max=500,dive"`
}

// Quote prices the lines in the given order. No rows are read or written.
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	mode := pricing.TaxExclusive
	switch {
	case body.TaxMode == "inclusive":
		mode = pricing.TaxInclusive
	case body.TaxMode == "exclusive":
	case h.Modes != nil:
		m, err := h.Modes.TaxMode(r.Context())
		if err != nil {
			common.WriteError(w, err)
			return
		}
		mode = m
	}

	lines := make([]pricing.Line, len(body.Items))
	for i, it := range body.Items {
		lines[i] = pricing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRatePercent: it.TaxRatePercent}
	}
	common.Data(w, http.StatusOK, pricing.Compute(lines, body.Discount, mode))
}
