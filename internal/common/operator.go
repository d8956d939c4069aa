package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const operatorKey ctxKey = "pos/operator"

// WithOperator stores the till operator (cashier) identifier on ctx.
func WithOperator(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operatorKey, id)
}

// Operator extracts the till operator identifier from the context if present.
func Operator(ctx context.Context) (string, bool) {
	v := ctx.Value(operatorKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// OperatorFromHeader copies the operator named in header into the request
// context. Requests without the header pass through unchanged.
func OperatorFromHeader(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(WithOperator(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
