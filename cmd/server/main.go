package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nerdherd/push-relay/internal/api"
	"github.com/nerdherd/push-relay/internal/api/handler"
	"github.com/nerdherd/push-relay/internal/assertion"
	"github.com/nerdherd/push-relay/internal/config"
	"github.com/nerdherd/push-relay/internal/credential"
	"github.com/nerdherd/push-relay/internal/db"
	"github.com/nerdherd/push-relay/internal/metrics"
	"github.com/nerdherd/push-relay/internal/provider"
	"github.com/nerdherd/push-relay/internal/ratelimiter"
	"github.com/nerdherd/push-relay/internal/repository"
	"github.com/nerdherd/push-relay/internal/service"
	"github.com/nerdherd/push-relay/internal/token"
)

func main() {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	logger, _ := zapCfg.Build()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("invalid LOG_LEVEL, keeping info", zap.String("log_level", cfg.LogLevel))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	checks := map[string]handler.Check{"database": pool.Ping}

	// ---- optional suppression store ----
	var suppressor repository.Suppressor = repository.NopSuppressor{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, suppression checks will fail open", zap.Error(err))
		}
		suppressor = repository.NewRedisSuppressor(rdb, cfg.SuppressionTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("device token suppression enabled", zap.Duration("ttl", cfg.SuppressionTTL))
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	deliveries := repository.NewPgDeliveryRepository(pool)

	loader := credential.NewLoader(credential.EnvSecret{Key: cfg.CredentialEnv}, logger, m.TierHook())
	exchanger := token.NewExchanger(token.ExchangerConfig{
		TokenURL: cfg.OAuthTokenURL,
		Timeout:  cfg.ProviderTimeout,
		Attempts: cfg.TokenExchangeAttempts,
		Backoff:  cfg.TokenExchangeBackoff,
	}, m.TokenHooks(), logger)
	minter := token.NewMinter(assertion.NewSigner(assertion.WithTokenURL(cfg.OAuthTokenURL)), exchanger)
	tokens, err := token.NewSource(cfg.TokenCacheMode, minter, m.TokenHooks(), logger)
	if err != nil {
		logger.Fatal("failed to build token source", zap.Error(err))
	}

	onFinish, onDelivered, onSuppressed := m.PipelineHooks()
	svc := service.NewPushService(service.Deps{
		Targets:    repository.NewPgTargetRepository(pool),
		Deliveries: deliveries,
		Suppressor: suppressor,
		Credential: loader,
		Tokens:     tokens,
		Provider:   provider.NewFCMProvider(cfg.FCMBaseURL, cfg.ProviderTimeout),
		Limiter:    ratelimiter.New(cfg.RateLimit),
		BundleID:   cfg.APNSBundleID,
		Hooks: service.MetricHooks{
			OnFinish:     onFinish,
			OnDelivered:  onDelivered,
			OnSuppressed: onSuppressed,
		},
	}, logger)

	// ---- HTTP server ----
	router := api.NewRouter(svc, deliveries, checks, reg, cfg.RequestTimeout, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("token_cache_mode", cfg.TokenCacheMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// In-flight pushes finish before the pools they use are closed.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}
