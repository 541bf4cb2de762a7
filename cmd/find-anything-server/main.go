package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ferg-cod3s/find-anything/internal/archive"
	"github.com/ferg-cod3s/find-anything/internal/config"
	"github.com/ferg-cod3s/find-anything/internal/httpapi"
	"github.com/ferg-cod3s/find-anything/internal/inbox"
	"github.com/ferg-cod3s/find-anything/internal/middleware"
	"github.com/ferg-cod3s/find-anything/internal/observability"
	"github.com/ferg-cod3s/find-anything/internal/query"
	"github.com/ferg-cod3s/find-anything/internal/schema"
	"github.com/ferg-cod3s/find-anything/internal/security/auth"
	"github.com/ferg-cod3s/find-anything/internal/security/ratelimit"
)

const Version = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LoggerConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		Output:        os.Stderr,
		AddSource:     true,
		SentryEnabled: cfg.Observability.Sentry.Enabled,
	})

	logger.Info("find-anything server starting",
		"version", Version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"data_dir", cfg.DataDir,
	)

	var metrics *observability.MetricsCollector
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.NewMetricsCollector("findanything")
		metrics.SetSystemStartTime(time.Now())
		go startMetricsServer(cfg.Observability.Metrics, logger)
	} else {
		logger.Info("metrics collection disabled")
	}

	var tracerProvider *observability.TracerProvider
	if cfg.Observability.Tracing.Enabled {
		tracerProvider, err = observability.NewTracerProvider(observability.TracerConfig{
			ServiceName:    "find-anything",
			ServiceVersion: Version,
			Environment:    cfg.Observability.Sentry.Environment,
			OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SampleRate,
			Enabled:        true,
		})
		if err != nil {
			logger.Error("failed to initialize tracing provider", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown tracer provider", "error", err)
			}
		}()
		logger.Info("tracing enabled", "endpoint", cfg.Observability.Tracing.Endpoint)
	} else {
		logger.Info("tracing disabled")
	}

	if cfg.Observability.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Observability.Sentry.DSN,
			Environment:      cfg.Observability.Sentry.Environment,
			Release:          cfg.Observability.Sentry.Release,
			TracesSampleRate: cfg.Observability.Sentry.SampleRate,
			EnableTracing:    true,
		}); err != nil {
			logger.Error("failed to initialize sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
		logger.Info("sentry enabled", "environment", cfg.Observability.Sentry.Environment)
	} else {
		logger.Info("sentry disabled")
	}

	registry := schema.NewRegistry(cfg.DataDir, logger)
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Error("failed to close source registry", "error", err)
		}
	}()

	arch, err := archive.New(registry.ContentDir(), cfg.Archive.SoftTargetBytes, cfg.Archive.CompressionLevel)
	if err != nil {
		logger.Error("failed to initialize archive manager", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := arch.Close(); err != nil {
			logger.Error("failed to close archive manager", "error", err)
		}
	}()

	worker := inbox.NewWorker(registry, arch, logger, metrics, cfg.Inbox.PollInterval, cfg.Inbox.WatchEnabled, cfg.Query.MaxCompositeDepth)
	if err := worker.Start(ctx); err != nil {
		logger.Error("failed to start inbox worker", "error", err)
		os.Exit(1)
	}
	if metrics != nil {
		metrics.SetComponentHealth("inbox_worker", true)
	}
	defer func() {
		if err := worker.Stop(); err != nil {
			logger.Error("failed to stop inbox worker", "error", err)
		}
	}()

	engine := query.NewEngine(registry, arch, logger, metrics, cfg.Query.OverscanLimit, cfg.Query.FuzzyThreshold)

	api := httpapi.NewServer(registry, arch, engine, worker, logger, metrics, cfg.Observability.Sentry.Enabled)
	handler := wrapMiddleware(api.Routes(), cfg, metrics, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
}

// wrapMiddleware applies the auth/CORS/rate-limit/security-header chain
// around the API mux. Rate limiting runs first
// (cheapest rejection), then CORS, then security headers, then auth last
// (auth failures still get CORS headers on the response).
func wrapMiddleware(next http.Handler, cfg *config.Config, metrics *observability.MetricsCollector, logger *observability.Logger) http.Handler {
	handler := next

	if metrics != nil {
		handler = requestMetricsMiddleware(handler, metrics)
	}

	authenticator := auth.NewStaticTokenAuthenticator(cfg.Server.BearerToken)
	handler = middleware.NewAuthMiddleware(authenticator).Middleware(handler)

	// Security headers have no corresponding config.go section; a static,
	// conservative default is applied rather than left unconfigurable. See
	// DESIGN.md.
	securityMiddleware := middleware.NewSecurityMiddleware(middleware.SecurityConfig{
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
	}, logger)
	handler = securityMiddleware.Middleware(handler)

	corsMiddleware := middleware.NewCORSMiddleware(middleware.CORSConfig{
		Enabled:          cfg.CORS.Enabled,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}, logger)
	handler = corsMiddleware.Middleware(handler)

	if cfg.RateLimit.Enabled {
		rateLimiter, err := ratelimit.NewRateLimiter(ratelimit.Config{
			Enabled:   true,
			Algorithm: ratelimit.SlidingWindow,
			Redis: ratelimit.RedisConfig{
				Enabled:   cfg.RateLimit.Redis.Enabled,
				Addr:      cfg.RateLimit.Redis.Addr,
				Password:  cfg.RateLimit.Redis.Password,
				DB:        cfg.RateLimit.Redis.DB,
				KeyPrefix: cfg.RateLimit.Redis.KeyPrefix,
			},
			Default: ratelimit.LimitConfig{Requests: 100, Window: time.Minute},
			Bulk: ratelimit.LimitConfig{
				Requests: cfg.RateLimit.Bulk.Requests,
				Window:   cfg.RateLimit.Bulk.Window,
			},
			Search: ratelimit.LimitConfig{
				Requests: cfg.RateLimit.Search.Requests,
				Window:   cfg.RateLimit.Search.Window,
			},
			BurstMultiplier: cfg.RateLimit.BurstMultiplier,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		if err != nil {
			logger.Error("failed to initialize rate limiter, continuing without it", "error", err)
		} else {
			rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
				RateLimiter:      rateLimiter,
				MetricsCollector: metrics,
			}, logger)
			handler = rateLimitMiddleware.Middleware(handler)
		}
	} else {
		logger.Info("rate limiting disabled")
	}

	return handler
}

// requestMetricsMiddleware records count and duration per API route. Routes
// are the fixed mux patterns, so label cardinality stays bounded.
func requestMetricsMiddleware(next http.Handler, metrics *observability.MetricsCollector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		// The mux records the matched pattern on r; unmatched requests share
		// one label.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(route, fmt.Sprintf("%d", sw.status), time.Since(started))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// startMetricsServer runs the Prometheus metrics endpoint on its own port,
// separate from the API server.
func startMetricsServer(cfg config.MetricsConfig, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"healthy","component":"metrics"}`)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("starting metrics server", "addr", addr, "path", cfg.Path)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", "error", err)
	}
}
