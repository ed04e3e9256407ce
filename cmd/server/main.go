// Package main provides the API server entry point for the trading simulator.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trading-simulator/internal/adapter"
	"github.com/trading-simulator/internal/api"
	"github.com/trading-simulator/internal/config"
	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/service"
	"github.com/trading-simulator/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	if err := storage.MigrateClickHouse(context.Background(), clickhouse); err != nil {
		logger.WithError(err).Fatal("Failed to run ClickHouse migrations")
	}

	// Repositories
	balanceRepo := storage.NewBalanceRepository(postgres)
	tradeRepo := storage.NewTradeRepository(postgres)
	competitionRepo := storage.NewCompetitionRepository(postgres)
	priceHistoryRepo := storage.NewPriceHistoryRepository(clickhouse)
	priceCache := storage.NewPriceCache(redis, cfg.Cache.PriceTTL)

	// Price sources, in resolution priority order
	sources := []adapter.PriceSource{
		adapter.NewDexScreenerClient(cfg.Providers.DexScreenerBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.RateLimitRPS),
		adapter.NewJupiterClient(cfg.Providers.JupiterBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.RateLimitRPS),
		adapter.NewRaydiumClient(cfg.Providers.RaydiumBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.RateLimitRPS),
	}

	// Services
	priceService := service.NewPriceService(sources, priceCache, priceHistoryRepo)
	tradeService := service.NewTradeService(priceService, balanceRepo, tradeRepo, cfg.Trading)
	competitionService := service.NewCompetitionService(competitionRepo, balanceRepo, priceService, priceHistoryRepo, cfg.Competition)

	scheduler := service.NewSnapshotScheduler(competitionService, cfg.Competition.SnapshotInterval)
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start snapshot scheduler")
	}
	defer scheduler.Stop()

	// HTTP server
	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		priceService,
		tradeService,
		competitionService,
		balanceRepo,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.WithError(err).Fatal("API server failed")
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
