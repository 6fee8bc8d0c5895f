package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/marcelojr/survey-votes/internal/app/httpapi"
	"github.com/marcelojr/survey-votes/internal/app/survey"
	"github.com/marcelojr/survey-votes/internal/domain"
	"github.com/marcelojr/survey-votes/internal/platform/clock"
	"github.com/marcelojr/survey-votes/internal/platform/config"
	"github.com/marcelojr/survey-votes/internal/platform/health"
	"github.com/marcelojr/survey-votes/internal/platform/logger"
	"github.com/marcelojr/survey-votes/internal/platform/migrations"
	"github.com/marcelojr/survey-votes/internal/platform/ratelimit"
	"github.com/marcelojr/survey-votes/internal/platform/storage/postgres"
	redisstore "github.com/marcelojr/survey-votes/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", "err", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	db, err := postgres.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("open postgres", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("unwrap sql.DB", "err", err)
	}
	defer func() { _ = sqlDB.Close() }()

	if cfg.AutoMigrate {
		if err := migrations.Run(db, cfg.VoteOptions); err != nil {
			logger.Fatal("run migrations", "err", err)
		}
		logger.Info("migrations applied", "seeded_options", len(cfg.VoteOptions))
	}

	var (
		redisClient *goredis.Client
		statsCache  domain.StatsCache  = redisstore.NoopStatsCache{}
		limiter     domain.RateLimiter = ratelimit.NewNoop()
	)
	if cfg.RedisEnabled {
		redisClient, err = redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("connect redis", "err", err)
		}
		defer func() { _ = redisClient.Close() }()

		statsCache = redisstore.NewStatsCache(redisClient, cfg.StatsCacheKey, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second)
		if cfg.RateLimitEnabled {
			limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMaxActions, time.Duration(cfg.RateLimitWindowSeconds)*time.Second, cfg.RateLimitKeyPrefix)
		}
	}

	service := survey.NewService(
		postgres.NewVoteRepository(db),
		postgres.NewOptionRepository(db),
		postgres.NewConfigRepository(db),
		statsCache,
		limiter,
		clock.NewSystemClock(),
	)

	checker := health.NewChecker(sqlDB, redisClient)
	api := httpapi.New(service, checker, logger.L(), cfg.PostgresDB)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("GET /readyz", checker.ReadyHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           httpapi.WithRequestID(mux, logger.L()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "err", err)
	}
	logger.Info("server stopped")
}
