package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/noah-isme/backend-pos/internal/app"
	"github.com/noah-isme/backend-pos/internal/audit"
	"github.com/noah-isme/backend-pos/internal/cache"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/health"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/order"
	"github.com/noah-isme/backend-pos/internal/purchase"
	"github.com/noah-isme/backend-pos/internal/ratelimit"
	"github.com/noah-isme/backend-pos/internal/settings"
	"github.com/noah-isme/backend-pos/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_HTTP_BUCKETS_MS", "")), nil)
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.RunMigrations {
		if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := app.OpenPostgres(ctx, cfg.DatabaseURL, "pos-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	redisClient, err := app.OpenRedis(ctx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		pool.Close()
		logger.Fatal().Err(err).Msg("open redis")
	}
	deps := app.Dependencies{DB: pool, Redis: redisClient}
	defer deps.Close()

	settingsService := &settings.Service{
		Store:  settings.NewRepo(pool),
		Cache:  cache.NewJSON(redisClient, cfg.SettingsCacheTTL),
		Logger: logger.With().Str("component", "settings").Logger(),
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalog.NewRepo(pool),
		Cache: cache.NewJSON(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	locker := lock.Locker{R: redisClient, Wait: cfg.LockWait}
	orderService := &order.Service{
		Store:   order.NewRepo(pool),
		Modes:   settingsService,
		Locker:  locker,
		LockTTL: cfg.LockTTL,
		Logger:  logger.With().Str("component", "order").Logger(),
	}
	purchaseService := &purchase.Service{
		Store:   purchase.NewRepo(pool),
		Modes:   settingsService,
		Locker:  locker,
		LockTTL: cfg.LockTTL,
		Logger:  logger.With().Str("component", "purchase").Logger(),
	}

	auditService := audit.Service{
		Store:        audit.NewRepo(pool),
		Enabled:      cfg.AuditEnabled,
		SamplingRate: cfg.AuditSamplingRate,
	}

	rateLimiter, err := ratelimit.New(redisClient, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	handler := newRouter(routerConfig{
		Config:         cfg,
		Logger:         logger,
		HTTPMetrics:    httpMetrics,
		MetricsEnabled: metricsEnabled,
		TracingEnabled: tracingEnabled,
		Health: health.Handler{
			Checker:      health.Deps{DB: pool, Redis: redisClient},
			DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
		TenantSlugs: tenant.NewDirectory(pool),
		RateLimit: ratelimit.Handler{
			Limiter: rateLimiter,
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
		},
		Idem: common.Idem{
			R:   redisClient,
			TTL: cfg.IdempotencyTTL,
			Scope: func(r *http.Request) string {
				id, _ := tenant.From(r.Context())
				return id
			},
		},
		Audit: audit.HTTPRecorder{
			Service: auditService,
			OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
		},
		Orders:    &order.Handler{Service: orderService},
		Quote:     &order.QuoteHandler{Modes: settingsService},
		Purchases: &purchase.Handler{Service: purchaseService},
		Catalog:   catalog.NewHandler(catalog.HandlerConfig{Service: catalogService}),
		Settings:  &settings.Handler{Service: settingsService},
		AuditLogs: audit.Handler{Service: auditService},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// fail readiness first so the load balancer drains this instance
	health.SetReady(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
