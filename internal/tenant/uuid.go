package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/common"
)

var (
	// ErrTenantMissing indicates the tenant identifier was not found in context.
	ErrTenantMissing = errors.New("tenant missing")
	// ErrTenantInvalid indicates the tenant identifier could not be parsed.
	ErrTenantInvalid = errors.New("tenant invalid")
)

// UUIDFrom returns the tenant of the request as a UUID. Storage rows are
// keyed by this value.
func UUIDFrom(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := From(ctx)
	if !ok {
		return uuid.Nil, ErrTenantMissing
	}
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrTenantInvalid, err)
	}
	return tid, nil
}

// RequireTenant rejects requests without a valid tenant UUID in context.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UUIDFrom(r.Context()); err != nil {
			if errors.Is(err, ErrTenantMissing) {
				common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant is required", nil)
				return
			}
			common.JSONError(w, http.StatusBadRequest, "TENANT_INVALID", "tenant id must be a uuid", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
