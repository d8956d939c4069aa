package tenant

import (
	"context"
	"strconv"
)

// With stores tenant identifier into the provided context.
func With(ctx context.Context, id string) context.Context {
	return WithTenant(ctx, id)
}

// From exposes the tenant identifier retrieval helper.
func From(ctx context.Context) (string, bool) {
	return FromContext(ctx)
}

// PrefixKey creates a namespaced cache/lock key per tenant id.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return tenantID + ":" + key
}

// ResourceKey builds "<tenant>:<resource>:<id>", e.g. a lock key for one order.
func ResourceKey(tenantID, resource string, id int64) string {
	return PrefixKey(tenantID, resource+":"+strconv.FormatInt(id, 10))
}
