package common

import "net/http"

// MaxPerPage caps list pages for every list endpoint.
const MaxPerPage = 100

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination fills TotalPages from total.
func NewPagination(page, perPage int, total int64) Pagination {
	p := Pagination{Page: page, PerPage: perPage, TotalItems: total}
	if perPage > 0 {
		p.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return p
}

// ParsePagination reads ?page= and ?perPage= (or ?limit=). Missing or
// invalid values fall back to page 1 and defaultPerPage; perPage is capped
// at MaxPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = atLeastOne(AtoiDefault(q.Get("page"), 1), 1)
	raw := q.Get("perPage")
	if raw == "" {
		raw = q.Get("limit")
	}
	perPage = atLeastOne(AtoiDefault(raw, defaultPerPage), defaultPerPage)
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Offset converts a 1-based page into a row offset.
func Offset(page, perPage int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * perPage
}

func atLeastOne(n, def int) int {
	if n < 1 {
		return def
	}
	return n
}
