package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/audit"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/health"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/order"
	"github.com/noah-isme/backend-pos/internal/purchase"
	"github.com/noah-isme/backend-pos/internal/ratelimit"
	"github.com/noah-isme/backend-pos/internal/security"
	"github.com/noah-isme/backend-pos/internal/settings"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

type routerConfig struct {
	Config         *config.Config
	Logger         zerolog.Logger
	HTTPMetrics    *obs.HTTPMetrics
	MetricsEnabled bool
	TracingEnabled bool

	Health      health.Handler
	TenantSlugs tenant.SlugLookup
	RateLimit   ratelimit.Handler
	Idem        common.Idem
	Audit       audit.HTTPRecorder

	Orders    *order.Handler
	Quote     *order.QuoteHandler
	Purchases *purchase.Handler
	Catalog   *catalog.Handler
	Settings  *settings.Handler
	AuditLogs audit.Handler
}

func newRouter(rc routerConfig) http.Handler {
	cfg := rc.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if rc.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if rc.MetricsEnabled && rc.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: rc.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rc.Logger}.Middleware)
	r.Use(security.Headers{
		Enable:        true,
		EnableHSTS:    cfg.AppEnv == "production",
		NoStorePrefix: "/api/v1",
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", cfg.TenantHeader, cfg.OperatorHeader},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if rc.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", rc.Health.Live)
	r.Get("/health/ready", rc.Health.Ready)

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.TenantRoot, cfg.DefaultTenant).WithSlugs(rc.TenantSlugs)
	idem := rc.Idem
	trail := func(resource string) func(http.Handler) http.Handler {
		return rc.Audit.Middleware(audit.HTTPConfig{ResourceType: resource, ResourceIDParam: "id"})
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(resolver.Middleware)
		v.Use(tenant.RequireTenant)
		v.Use(rc.RateLimit.Middleware)
		v.Use(common.OperatorFromHeader(cfg.OperatorHeader))
		v.Use(obs.Annotate)

		v.Get("/products", rc.Catalog.Products)
		v.Get("/products/{id}", rc.Catalog.Product)

		v.Get("/settings", rc.Settings.Get)
		v.With(trail("settings")).Put("/settings", rc.Settings.Update)

		v.Post("/pricing/quote", rc.Quote.Quote)
		v.Get("/audit-logs", rc.AuditLogs.List)

		v.Route("/orders", func(o chi.Router) {
			o.With(idem.Middleware, trail("order")).Post("/", rc.Orders.Create)
			o.Get("/", rc.Orders.List)
			o.Route("/{id}", func(child chi.Router) {
				child.Use(trail("order"))
				child.Get("/", rc.Orders.Get)
				child.Put("/", rc.Orders.UpdateHeader)
				child.Patch("/status", rc.Orders.UpdateStatus)
				child.Get("/items", rc.Orders.Items)
				child.Post("/items", rc.Orders.AddItems)
				child.Post("/reconcile", rc.Orders.Reconcile)
			})
		})
		v.With(trail("order_item")).Put("/order-items/{id}", rc.Orders.PatchItem)
		v.With(trail("order_item")).Delete("/order-items/{id}", rc.Orders.DeleteItem)

		v.Route("/purchase-orders", func(p chi.Router) {
			p.With(idem.Middleware, trail("purchase_order")).Post("/", rc.Purchases.Create)
			p.Get("/", rc.Purchases.List)
			p.Route("/{id}", func(child chi.Router) {
				child.Use(trail("purchase_order"))
				child.Get("/", rc.Purchases.Get)
				child.Put("/", rc.Purchases.UpdateHeader)
				child.Get("/items", rc.Purchases.Items)
				child.Post("/reconcile", rc.Purchases.Reconcile)
			})
		})
		v.With(trail("purchase_order_item")).Post("/purchase-order-items", rc.Purchases.CreateItem)
		v.With(trail("purchase_order_item")).Delete("/purchase-order-items/{id}", rc.Purchases.DeleteItem)
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
