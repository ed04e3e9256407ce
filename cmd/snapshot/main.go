// Package main provides a one-shot snapshot tool: it values every team in the
// active competition once and exits. Useful for cron-style deployments and
// for forcing a snapshot by hand.
package main

import (
	"context"
	"log"
	"time"

	"github.com/trading-simulator/internal/adapter"
	"github.com/trading-simulator/internal/config"
	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/service"
	"github.com/trading-simulator/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)
	logger := logging.GetGlobalLogger()

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

	balanceRepo := storage.NewBalanceRepository(postgres)
	competitionRepo := storage.NewCompetitionRepository(postgres)
	priceHistoryRepo := storage.NewPriceHistoryRepository(clickhouse)
	priceCache := storage.NewPriceCache(redis, cfg.Cache.PriceTTL)

	sources := []adapter.PriceSource{
		adapter.NewDexScreenerClient(cfg.Providers.DexScreenerBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.RateLimitRPS),
		adapter.NewJupiterClient(cfg.Providers.JupiterBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.RateLimitRPS),
		adapter.NewRaydiumClient(cfg.Providers.RaydiumBaseURL, cfg.Providers.RequestTimeout, cfg.Providers.RateLimitRPS),
	}

	priceService := service.NewPriceService(sources, priceCache, priceHistoryRepo)
	competitionService := service.NewCompetitionService(competitionRepo, balanceRepo, priceService, priceHistoryRepo, cfg.Competition)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	active, err := competitionService.GetActiveCompetition(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to look up active competition")
	}
	if active == nil {
		logger.Info("No active competition, nothing to snapshot")
		return
	}

	start := time.Now()
	if err := competitionService.TakePortfolioSnapshots(ctx, active.ID); err != nil {
		logger.WithError(err).Fatal("Snapshot run failed")
	}

	logger.WithFields(map[string]interface{}{
		"competition": active.ID,
		"duration":    time.Since(start).String(),
	}).Info("Snapshot run completed")
}
