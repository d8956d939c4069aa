package common

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorBody is the "error" member of every failed response. Tills show
// Message to the cashier and branch on Code.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v as the response body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data writes {"data": v}.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, map[string]any{"data": v})
}

// Page writes {"data": items, "pagination": p} and mirrors the total in
// X-Total-Count for clients that only read headers.
func Page(w http.ResponseWriter, items any, p Pagination) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(p.TotalItems, 10))
	JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": p})
}

// JSONError writes {"error": {...}}.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{Code: code, Message: message, Details: details},
	})
}
