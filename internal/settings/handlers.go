package settings

import (
	"net/http"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes GET/PUT /settings.
type Handler struct {
	Service *Service
}

type updateRequest struct {
	StoreName        string `json:"storeName" validate:"max=120"`
	CurrencyCode     string `json:"currencyCode" validate:"omitempty,len=3,uppercase"`
	PriceIncludesTax *bool  `json:"priceIncludesTax" validate:"required"`
}

// Get handles GET /settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s)
}

// Update handles PUT /settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	s, err := h.Service.Update(r.Context(), StoreSettings{
		StoreName:        body.StoreName,
		CurrencyCode:     body.CurrencyCode,
		PriceIncludesTax: *body.PriceIncludesTax,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, s)
}
