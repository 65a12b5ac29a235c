package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/featureflags"
	"github.com/yourorg/staybook/internal/handler"
	"github.com/yourorg/staybook/internal/identity"
	"github.com/yourorg/staybook/internal/infrastructure/logger"
	"github.com/yourorg/staybook/internal/infrastructure/redis"
	"github.com/yourorg/staybook/internal/observability/metrics"
	"github.com/yourorg/staybook/internal/observability/tracing"
	"github.com/yourorg/staybook/internal/pms"
	"github.com/yourorg/staybook/internal/reliability/retry"
	"github.com/yourorg/staybook/internal/repository"
	"github.com/yourorg/staybook/internal/security"
	"github.com/yourorg/staybook/internal/security/audit"
	"github.com/yourorg/staybook/internal/security/middleware"
	"github.com/yourorg/staybook/internal/security/ratelimit"
	"github.com/yourorg/staybook/internal/service"
	"github.com/yourorg/staybook/internal/worker"
	"github.com/yourorg/staybook/pkg/cache"
	"github.com/yourorg/staybook/pkg/config"
	"github.com/yourorg/staybook/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting staybook identity server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op without an OTLP endpoint)
	shutdownTracing, err := tracing.Init(ctx, log, "staybook", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 4. Redis (session revocation list)
	redisClient, err := retry.Do(ctx, retry.DefaultPolicy(), log, "redis connect",
		func(ctx context.Context) (*redis.Client, error) {
			return redis.NewClient(cfg.RedisURL)
		})
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()
	revocations := redis.NewSessionRevocations(redisClient)

	// 5. Database: migrate, then pick the data-access strategy. Both run the
	// same SQL; the choice is a deployment knob, not a behavior switch.
	if err := database.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var (
		identityStore   domain.IdentityStore
		pmsStore        domain.PMSStore
		credentialStore domain.CredentialStore
		dbHealth        handler.Pinger
	)
	if cfg.UseDirectPool {
		pool, err := retry.Do(ctx, retry.DefaultPolicy(), log, "database connect",
			func(ctx context.Context) (*database.ConnectionPool, error) {
				return database.NewConnectionPool(ctx, cfg.DatabaseURL, database.DefaultPoolOptions(), log)
			})
		if err != nil {
			log.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		store := repository.NewPostgresStore(pool.GetDB(), log)
		identityStore, pmsStore, credentialStore, dbHealth = store, store, store, pool
		log.Info("data access strategy: direct pool")
	} else {
		pgxPool, err := retry.Do(ctx, retry.DefaultPolicy(), log, "database connect",
			func(ctx context.Context) (*database.PGXPool, error) {
				return database.NewPGXPool(ctx, cfg.DatabaseURL, log)
			})
		if err != nil {
			log.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pgxPool.Close()
		store := repository.NewPGXStore(pgxPool.Pool(), log)
		identityStore, pmsStore, credentialStore, dbHealth = store, store, store, pgxPool
		log.Info("data access strategy: pgx client")
	}

	// Circuit breaker in front of identity loads: a down database should
	// degrade resolutions to anonymous quickly, not exhaust the pool.
	guardedStore := repository.NewBreakerStore(identityStore, log)

	// 6. Session verification: remote JWKS when configured, shared secret
	// otherwise. Both consult the revocation list.
	var verifier *identity.SessionVerifier
	if cfg.SessionJWKSURL != "" {
		verifier, err = identity.NewJWKSVerifier(ctx, cfg.SessionJWKSURL, cfg.SessionIssuer, revocations, log)
		if err != nil {
			log.Error("failed to initialize jwks verifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		if cfg.SessionSecret == "" && !cfg.IsDevelopment() {
			log.Error("SESSION_SECRET must be set outside development")
			os.Exit(1)
		}
		verifier = identity.NewSessionVerifier(cfg.SessionSecret, cfg.SessionIssuer, revocations, log)
	}

	// 7. Identity resolution core
	identityCache := cache.New()
	resolver := identity.NewResolver(verifier, guardedStore, identityCache, identity.Options{
		CacheTTL:           cfg.IdentityCacheTTL,
		FavoritesCacheSize: cfg.FavoritesCacheSize,
		FavoritesCacheTTL:  cfg.FavoritesCacheTTL,
		Diagnostics:        cfg.IsDevelopment() || featureflags.Enabled(featureflags.IdentityDiagnostics),
	}, log)
	pmsResolver := pms.NewResolver(pmsStore, log)

	// 8. Services and security components
	tokenManager := identity.NewTokenManager(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	authService := service.NewAuthService(credentialStore, tokenManager, revocations, resolver, log)
	rateLimiter := ratelimit.NewLimiter(100, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 9. Handlers
	authHandler := handler.NewAuthHandler(authService, verifier, rateLimiter, log)
	meHandler := handler.NewMeHandler(log)
	favoritesHandler := handler.NewFavoritesHandler(resolver, log)
	pmsHandler := handler.NewPMSHandler(pmsResolver, log)
	adminHandler := handler.NewAdminHandler(guardedStore, auditLogger, log)
	presenceHandler := handler.NewPresenceHandler(cfg.CORSAllowedOrigins, log)
	healthHandler := handler.NewHealthHandler(dbHealth, redisClient, log)

	// 10. Routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/register", http.HandlerFunc(authHandler.Register))
	mux.Handle("POST /api/auth/login", http.HandlerFunc(authHandler.Login))
	mux.Handle("POST /api/auth/logout", http.HandlerFunc(authHandler.Logout))
	mux.Handle("POST /api/auth/change-password", middleware.RequireIdentity(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/me", meHandler)
	mux.Handle("GET /api/me/favorites", favoritesHandler)
	mux.Handle("GET /api/me/pms-role", middleware.RequireIdentity(pmsHandler))
	mux.Handle("GET /api/admin/users",
		middleware.RequirePermission(security.PermManageUsers, "admin_users", auditLogger)(
			http.HandlerFunc(adminHandler.ListUsers),
		),
	)
	mux.Handle("GET /ws/presence", presenceHandler)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> identity -> rate limit ->
	// content-type validation -> CORS/routes. Identity is resolved once here
	// and carried in the context for the rest of the request.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.WithIdentity(resolver, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.ValidateJSONContentType(log)(handlerWithCORS),
				),
			),
		),
		log,
	)

	// 11. Background cache janitor
	janitor := worker.NewCacheJanitor(identityCache, cfg.CacheSweepEvery, log)
	go janitor.Start(ctx)

	// 12. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "http.server"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Duration("identity_cache_ttl", cfg.IdentityCacheTTL),
		slog.Bool("direct_pool", cfg.UseDirectPool),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
