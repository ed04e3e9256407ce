// Package config provides configuration management for the trading simulator.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Providers   ProvidersConfig
	Trading     TradingConfig
	Competition CompetitionConfig
	Logging     LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds price cache configuration
type CacheConfig struct {
	// PriceTTL is how long a cached price counts as fresh. Within this window
	// no provider calls are made for the token.
	PriceTTL time.Duration
}

// ProvidersConfig holds price source configuration
type ProvidersConfig struct {
	DexScreenerBaseURL string
	JupiterBaseURL     string
	RaydiumBaseURL     string
	// RequestTimeout bounds every provider HTTP call.
	RequestTimeout time.Duration
	// RateLimitRPS is the per-provider request budget per second.
	RateLimitRPS float64
}

// TradingConfig holds trade simulation configuration
type TradingConfig struct {
	// MinTradeAmount is the smallest tradable unit of the from token.
	MinTradeAmount float64
	// MaxTradePortfolioPct caps a single trade's USD value as a percentage of
	// the team's total portfolio value.
	MaxTradePortfolioPct float64
}

// CompetitionConfig holds competition configuration
type CompetitionConfig struct {
	// SnapshotInterval is how often portfolio snapshots are taken while a
	// competition is active.
	SnapshotInterval time.Duration
	// PriceFreshness is how old a price history record may be and still be
	// reused directly during snapshots, skipping provider calls.
	PriceFreshness time.Duration
	// InitialBalances is the allocation every participating team is reset to
	// at competition start, keyed by token address.
	InitialBalances map[string]float64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "trading_simulator"),
				User:           getEnv("POSTGRES_USER", "simulator"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "trading_simulator"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Cache: CacheConfig{
			PriceTTL: getEnvAsDuration("PRICE_CACHE_TTL", 30*time.Second),
		},
		Providers: ProvidersConfig{
			DexScreenerBaseURL: getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
			JupiterBaseURL:     getEnv("JUPITER_BASE_URL", "https://lite-api.jup.ag"),
			RaydiumBaseURL:     getEnv("RAYDIUM_BASE_URL", "https://api-v3.raydium.io"),
			RequestTimeout:     getEnvAsDuration("PROVIDER_REQUEST_TIMEOUT", 5*time.Second),
			RateLimitRPS:       getEnvAsFloat("PROVIDER_RATE_LIMIT_RPS", 3),
		},
		Trading: TradingConfig{
			MinTradeAmount:       getEnvAsFloat("MIN_TRADE_AMOUNT", 0.000001),
			MaxTradePortfolioPct: getEnvAsFloat("MAX_TRADE_PORTFOLIO_PCT", 25),
		},
		Competition: CompetitionConfig{
			SnapshotInterval: getEnvAsDuration("SNAPSHOT_INTERVAL", 2*time.Minute),
			PriceFreshness:   getEnvAsDuration("SNAPSHOT_PRICE_FRESHNESS", 10*time.Minute),
			InitialBalances:  parseBalances(getEnv("INITIAL_BALANCES", defaultInitialBalances)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// defaultInitialBalances seeds each team with stablecoins on Ethereum and the
// SVM network plus some native-wrapped tokens.
const defaultInitialBalances = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48=5000," + // USDC (eth)
	"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2=2," + // WETH
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v=5000," + // USDC (svm)
	"So11111111111111111111111111111111111111112=20" // wrapped SOL

// parseBalances parses a comma-separated list of token=amount pairs.
// Malformed entries are skipped.
func parseBalances(raw string) map[string]float64 {
	balances := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || amount < 0 {
			continue
		}
		balances[strings.TrimSpace(parts[0])] = amount
	}
	return balances
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
