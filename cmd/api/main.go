package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"devicegalaxy/internal/cache"
	"devicegalaxy/internal/config"
	"devicegalaxy/internal/database"
	"devicegalaxy/internal/handlers"
	"devicegalaxy/internal/jobs"
	"devicegalaxy/internal/log"
	"devicegalaxy/internal/queue"
	"devicegalaxy/internal/ratelimit"
	"devicegalaxy/internal/server"
	"devicegalaxy/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	if cfg.Security.JWTAccessSecret == "" {
		logger.Fatal().Msg("security.jwtaccesssecret must be set")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	producer := queue.NewProducer(redisClient, cfg.Queue.Stream)

	limiter := ratelimit.New(cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep, time.Minute)

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, objectStore, producer, limiter, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(producer, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
	close(stopSweep)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		wait := scheduler.Stop()
		wait()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
