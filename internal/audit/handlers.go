package audit

import (
	"net/http"

	"github.com/noah-isme/backend-pos/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Service Service
}

// List returns a page of the tenant's audit log.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := common.AtoiDefault(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	rows, err := h.Service.List(r.Context(), limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if rows == nil {
		rows = []Entry{}
	}
	common.Data(w, http.StatusOK, rows)
}
