package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stacfed/api"
	"github.com/kailas-cloud/stacfed/internal/config"
	"github.com/kailas-cloud/stacfed/internal/db"
	"github.com/kailas-cloud/stacfed/internal/db/memory"
	dbRedis "github.com/kailas-cloud/stacfed/internal/db/redis"
	logpkg "github.com/kailas-cloud/stacfed/internal/logger"
	"github.com/kailas-cloud/stacfed/internal/metrics"
	"github.com/kailas-cloud/stacfed/internal/repository/doccache"
	chiTransport "github.com/kailas-cloud/stacfed/internal/transport/chi"
	"github.com/kailas-cloud/stacfed/internal/transport/cmr"
	"github.com/kailas-cloud/stacfed/internal/transport/stac"
	"github.com/kailas-cloud/stacfed/internal/transport/upstream"
	conformanceuc "github.com/kailas-cloud/stacfed/internal/usecase/conformance"
	healthuc "github.com/kailas-cloud/stacfed/internal/usecase/health"
	searchuc "github.com/kailas-cloud/stacfed/internal/usecase/search"
	"github.com/kailas-cloud/stacfed/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	apis := cfg.Catalogs()
	logger.Info("Starting stacfed API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("apis", apis.URLs()),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	store, err := openStore(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
		ctx := context.Background()
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")
	}

	// Register metrics explicitly (no init())
	metrics.Register()

	// Upstream clients share one HTTP client and its per-catalog rate limiters.
	httpClient := upstream.New(upstream.Config{
		Timeout:   time.Duration(cfg.Upstream.TimeoutSec) * time.Second,
		UserAgent: cfg.Upstream.UserAgent,
		RateLimit: cfg.Upstream.RateLimit,
		Burst:     cfg.Upstream.Burst,
		Logger:    logger,
	})
	stacClient := stac.New(httpClient)
	cmrClient := cmr.New(httpClient)

	// Pass nil interfaces (not typed nil pointers!) when no cache is configured.
	var (
		landings conformanceuc.LandingFetcher = stacClient
		purger   chiTransport.CachePurger
		pinger   healthuc.StorePinger
	)
	if store != nil {
		cached := doccache.New(
			stacClient, store,
			time.Duration(cfg.Cache.TTLSec)*time.Second, cfg.Cache.KeyPrefix,
			metrics.DocumentCacheTotal, logger,
		)
		landings, purger, pinger = cached, cached, store
	}

	conformanceSvc := conformanceuc.New(apis, landings, logger).
		WithMaxConcurrency(cfg.Upstream.MaxConcurrency)
	// Health always probes upstreams live.
	healthSvc := healthuc.New(apis, stacClient, cmrClient, pinger).
		WithMaxConcurrency(cfg.Upstream.MaxConcurrency)
	searchSvc := searchuc.New(apis, conformanceSvc, stacClient, cmrClient, logger).
		WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxLimit).
		WithMaxConcurrency(cfg.Upstream.MaxConcurrency).
		WithMaxLocalPages(cfg.Search.MaxLocalPages)

	openAPI, err := chiTransport.OpenAPIJSON(api.Spec)
	if err != nil {
		logger.Fatal("Failed to load OpenAPI document", zap.Error(err))
	}

	// Create chi server
	server := chiTransport.NewServer(searchSvc, conformanceSvc, healthSvc, purger, apis, openAPI, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	if len(cfg.HTTP.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.HTTP.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware("/metrics", "/_mgmt/ping"))
	server.Routes(r)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
			Detail: "not found",
			Code:   chiTransport.CodeBadRequest,
		})
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore creates the cache backend for the configured driver. It returns nil
// when caching is disabled.
func openStore(cfg config.CacheConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return memory.NewStore(), nil
	case config.CacheRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,

			ClientCacheTTL: time.Duration(cfg.ClientCacheTTLSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Detail: "internal error",
						Code:   chiTransport.CodeInternalError,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request, plus whatever handlers annotated.
			fields := append([]zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}, logpkg.Annotations(ctx)...)
			reqLogger.Info("http_request", fields...)
		})
	}
}
