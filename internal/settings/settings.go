// Package settings stores the per-tenant store configuration. The tax mode
// every pricing pass uses is derived from it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/cache"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/reconcile"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

// DefaultCurrency is used until a store saves its own settings.
const DefaultCurrency = "IDR"

// StoreSettings is the configuration of one store.
type StoreSettings struct {
	StoreName        string    `json:"storeName"`
	CurrencyCode     string    `json:"currencyCode"`
	PriceIncludesTax bool      `json:"priceIncludesTax"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Defaults returns the settings of a store that never saved any.
func Defaults() StoreSettings {
	return StoreSettings{CurrencyCode: DefaultCurrency}
}

// Store persists settings. Get returns Defaults when no row exists.
type Store interface {
	Get(ctx context.Context, tenantID uuid.UUID) (StoreSettings, error)
	Upsert(ctx context.Context, tenantID uuid.UUID, s StoreSettings) (StoreSettings, error)
}

// Service reads settings through the cache and invalidates it on update.
type Service struct {
	Store  Store
	Cache  *cache.JSON
	Logger zerolog.Logger
}

var _ reconcile.SettingsSource = (*Service)(nil)

func tenantID(ctx context.Context) (uuid.UUID, error) {
	tid, err := tenant.UUIDFrom(ctx)
	if err != nil {
		return uuid.Nil, common.NewAppError("TENANT_REQUIRED", "tenant is required", http.StatusBadRequest, err)
	}
	return tid, nil
}

// Get returns the tenant's settings.
func (s *Service) Get(ctx context.Context) (StoreSettings, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return StoreSettings{}, err
	}
	key := cache.KeySettings(ctx)
	var cached StoreSettings
	if ok, err := s.Cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	out, err := s.Store.Get(ctx, tid)
	if err != nil {
		return StoreSettings{}, fmt.Errorf("load settings: %w", err)
	}
	_ = s.Cache.Set(ctx, key, out)
	return out, nil
}

// Update replaces the tenant's settings. Orders already saved keep the
// amounts they were priced with.
func (s *Service) Update(ctx context.Context, in StoreSettings) (StoreSettings, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return StoreSettings{}, err
	}
	if in.CurrencyCode == "" {
		in.CurrencyCode = DefaultCurrency
	}
	out, err := s.Store.Upsert(ctx, tid, in)
	if err != nil {
		if errors.Is(err, ErrUnknownTenant) {
			return StoreSettings{}, common.NotFound("tenant", err)
		}
		return StoreSettings{}, fmt.Errorf("save settings: %w", err)
	}
	if err := s.Cache.Delete(ctx, cache.KeySettings(ctx)); err != nil {
		s.Logger.Warn().Err(err).Str("tenant", tid.String()).Msg("settings cache invalidation failed")
	}
	s.Logger.Info().Str("tenant", tid.String()).Bool("price_includes_tax", out.PriceIncludesTax).Msg("store settings updated")
	return out, nil
}

// TaxMode resolves the pricing mode for the tenant in ctx.
func (s *Service) TaxMode(ctx context.Context) (pricing.TaxMode, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return pricing.TaxExclusive, err
	}
	return pricing.ModeFor(st.PriceIncludesTax), nil
}

// StoreSettings implements reconcile.SettingsSource.
func (s *Service) StoreSettings(ctx context.Context) (reconcile.Settings, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return reconcile.Settings{}, err
	}
	return reconcile.Settings{PriceIncludesTax: st.PriceIncludesTax}, nil
}
