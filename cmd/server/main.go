package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	docs "main/docs"
	appexchange "main/internal/application/service/exchange"
	appusers "main/internal/application/service/users"
	"main/internal/config"
	"main/internal/infrastructure/broker"
	infrainstruments "main/internal/infrastructure/instruments"
	infraledger "main/internal/infrastructure/ledger"
	infrausers "main/internal/infrastructure/users"
	infrahttp "main/internal/interfaces/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Host = cfg.HTTP.Addr()

	ledgerRepo, err := infraledger.NewRepository(ctx, cfg.Postgres.DSN, cfg.Matching.LockTimeout)
	if err != nil {
		logger.Fatalf("failed to init ledger repo: %v", err)
	}
	defer ledgerRepo.Close()

	instrumentRepo, err := infrainstruments.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init instruments repo: %v", err)
	}
	defer instrumentRepo.Close()

	usersRepo, err := infrausers.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Fatalf("failed to init users repo: %v", err)
	}
	defer usersRepo.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var sink appexchange.TradeSink
	if cfg.RabbitMQ.URL != "" {
		publisher, err := broker.NewPublisher(cfg.RabbitMQ, logger)
		if err != nil {
			logger.Fatalf("failed to init trade publisher: %v", err)
		}
		if err := publisher.Start(ctx); err != nil {
			logger.Fatalf("failed to start trade publisher: %v", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := publisher.Stop(stopCtx); err != nil {
				logger.Errorf("trade publisher stop error: %v", err)
			}
		}()
		sink = publisher
	}

	exchangeService := appexchange.NewService(ledgerRepo, instrumentRepo, cfg.Matching, sink, logger)
	usersService := appusers.NewService(usersRepo)

	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	handler := infrahttp.NewHandler(exchangeService, usersService, redisClient, cacheTTL)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: handler,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTP.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown error: %v", err)
	}
	logger.Info("server stopped")
}
