package cache

import (
	"context"
	"strconv"

	"github.com/noah-isme/backend-pos/internal/tenant"
)

func scoped(ctx context.Context, key string) string {
	id, _ := tenant.From(ctx)
	return tenant.PrefixKey(id, key)
}

// KeyProductList returns a per-tenant cache key for the first product page.
func KeyProductList(ctx context.Context) string {
	return scoped(ctx, "catalog:products:list")
}

// KeyProduct returns a per-tenant key for one product.
func KeyProduct(ctx context.Context, id int64) string {
	return scoped(ctx, "catalog:product:"+strconv.FormatInt(id, 10))
}

// KeySettings returns the per-tenant store settings key.
func KeySettings(ctx context.Context) string {
	return scoped(ctx, "settings")
}
