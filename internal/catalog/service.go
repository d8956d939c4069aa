package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/cache"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/reconcile"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

// ErrNotFound is returned by a Store when a product does not exist.
var ErrNotFound = errors.New("catalog: product not found")

// Product is a sellable catalog entry.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	TaxRate   decimal.Decimal `json:"taxRate"`
	Stock     decimal.Decimal `json:"stock"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store reads products for one tenant.
type Store interface {
	ListProducts(ctx context.Context, tenantID uuid.UUID, query string, limit, offset int) ([]Product, int64, error)
	GetProduct(ctx context.Context, tenantID uuid.UUID, id int64) (Product, error)
}

// Service serves product lookups with a Redis read-through cache.
type Service struct {
	store        Store
	cache        *cache.JSON
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

var _ reconcile.Catalog = (*Service)(nil)

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *cache.JSON
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query string
	Page  int
	Limit int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 200
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: s.defaultPage, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = l
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

func tenantID(ctx context.Context) (uuid.UUID, error) {
	tid, err := tenant.UUIDFrom(ctx)
	if err != nil {
		return uuid.Nil, common.NewAppError("TENANT_REQUIRED", "tenant is required", http.StatusBadRequest, err)
	}
	return tid, nil
}

type cachedList struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}

// ListProducts returns a page of products. Only the unfiltered first page is
// cached.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return ProductListResult{}, err
	}
	cacheable := params.Query == "" && params.Page == s.defaultPage && params.Limit == s.defaultLimit
	key := cache.KeyProductList(ctx)
	if cacheable {
		var cached cachedList
		if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	items, total, err := s.store.ListProducts(ctx, tid, params.Query, params.Limit, (params.Page-1)*params.Limit)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, cachedList{Items: items, Total: total})
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns one product, reading through the cache.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return Product{}, err
	}
	key := cache.KeyProduct(ctx, id)
	var cached Product
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.store.GetProduct(ctx, tid, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Product{}, common.NotFound("product", err)
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	_ = s.cache.Set(ctx, key, p)
	return p, nil
}

// Product implements reconcile.Catalog for in-process sessions.
func (s *Service) Product(ctx context.Context, id int64) (reconcile.Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return reconcile.Product{}, err
	}
	return reconcile.Product{ID: p.ID, Name: p.Name, SKU: p.SKU, Price: p.Price, TaxRate: p.TaxRate}, nil
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}
