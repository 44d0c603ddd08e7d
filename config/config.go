package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/adapters/logger"
	"github.com/AllanBico/atlas/internal/ports"
	"github.com/AllanBico/atlas/internal/strategy/analytics"
	"github.com/AllanBico/atlas/internal/strategy/optimization"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Logging
	LogLevel  logger.LogLevel
	LogFormat string

	// Storage
	DBDriver    string
	DBPath      string
	PostgresDSN string

	// HTTP / stream
	HTTPPort  int
	StreamURL string

	// Binance API (market data only)
	APIKey                 string
	SecretKey              string
	IsTestnet              bool
	KlineRequestsPerSecond float64

	// Backtest defaults
	Symbol         string
	Interval       string
	InitialCapital decimal.Decimal
	TakerFee       decimal.Decimal // Fraction of notional, e.g. 0.0004
	Slippage       decimal.Decimal // Fraction of price, e.g. 0.0001
	Leverage       int
	RiskPerTrade   decimal.Decimal
	StopLoss       decimal.Decimal // Stop distance as a fraction of entry, e.g. 0.02
	MinConfidence  float64

	// Optimizer
	OptimizerWorkers int
	TopN             int
	ScoreMetric      string
	MinTrades        int
	MarginBasis      analytics.MarginBasis

	// Stream client
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{}
	var err error
	var errs []error

	// Logging
	var ok bool
	if cfg.LogLevel, ok = logger.LookupLevel(getEnv("LOG_LEVEL", "INFO")); !ok {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", os.Getenv("LOG_LEVEL")))
	}
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", logger.FormatJSON))
	switch cfg.LogFormat {
	case logger.FormatText, logger.FormatJSON, logger.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of text, json, console, got %q", cfg.LogFormat))
	}

	// Storage
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	cfg.DBPath = getEnv("DB_PATH", "./data/atlas.db")
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", "")
	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH must be set"))
		}
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN must be set when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver))
	}

	cfg.HTTPPort, err = getEnvAsIntRequired("HTTP_PORT", 8080)
	if err != nil {
		errs = append(errs, err)
	} else if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		errs = append(errs, errors.New("HTTP_PORT must be between 1 and 65535"))
	}
	cfg.StreamURL = getEnv("STREAM_URL", fmt.Sprintf("ws://localhost:%d/ws", cfg.HTTPPort))

	// Binance API. Keys are optional: public market data needs none.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)
	cfg.KlineRequestsPerSecond, err = getEnvAsFloatRequired("KLINE_REQUESTS_PER_SECOND", 10)
	if err != nil {
		errs = append(errs, err)
	} else if cfg.KlineRequestsPerSecond <= 0 {
		errs = append(errs, errors.New("KLINE_REQUESTS_PER_SECOND must be positive"))
	}

	// Backtest defaults
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "BTCUSDT"))
	cfg.Interval = getEnv("INTERVAL", "1h")
	if cfg.Symbol == "" {
		errs = append(errs, errors.New("SYMBOL must be set"))
	}

	cfg.InitialCapital, err = getEnvAsDecimal("INITIAL_CAPITAL", decimal.NewFromInt(10000))
	if err != nil {
		errs = append(errs, err)
	} else if !cfg.InitialCapital.IsPositive() {
		errs = append(errs, errors.New("INITIAL_CAPITAL must be positive"))
	}

	cfg.TakerFee, err = getEnvAsDecimal("TAKER_FEE", decimal.RequireFromString("0.0004"))
	if err != nil {
		errs = append(errs, err)
	} else if cfg.TakerFee.IsNegative() {
		errs = append(errs, errors.New("TAKER_FEE cannot be negative"))
	}

	cfg.Slippage, err = getEnvAsDecimal("SLIPPAGE", decimal.RequireFromString("0.0001"))
	if err != nil {
		errs = append(errs, err)
	} else if cfg.Slippage.IsNegative() {
		errs = append(errs, errors.New("SLIPPAGE cannot be negative"))
	}

	cfg.Leverage, err = getEnvAsIntRequired("LEVERAGE", 5)
	if err != nil {
		errs = append(errs, err)
	} else if cfg.Leverage <= 0 {
		errs = append(errs, errors.New("LEVERAGE must be positive"))
	}

	cfg.RiskPerTrade, err = getEnvAsDecimal("RISK_PER_TRADE", decimal.RequireFromString("0.01"))
	if err != nil {
		errs = append(errs, err)
	} else if !cfg.RiskPerTrade.IsPositive() || cfg.RiskPerTrade.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("RISK_PER_TRADE must be between 0.0 and 1.0 (exclusive)"))
	}

	cfg.StopLoss, err = getEnvAsDecimal("STOP_LOSS", decimal.RequireFromString("0.02"))
	if err != nil {
		errs = append(errs, err)
	} else if !cfg.StopLoss.IsPositive() || cfg.StopLoss.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("STOP_LOSS must be between 0.0 and 1.0 (exclusive)"))
	}

	cfg.MinConfidence, err = getEnvAsFloatRequired("MIN_CONFIDENCE", 0.5)
	if err != nil {
		errs = append(errs, err)
	} else if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		errs = append(errs, errors.New("MIN_CONFIDENCE must be between 0 and 1"))
	}

	// Optimizer
	cfg.OptimizerWorkers = getEnvAsInt("OPTIMIZER_WORKERS", 0)
	if cfg.OptimizerWorkers < 0 {
		errs = append(errs, errors.New("OPTIMIZER_WORKERS cannot be negative"))
	}

	cfg.TopN, err = getEnvAsIntRequired("TOP_N", 10)
	if err != nil {
		errs = append(errs, err)
	} else if cfg.TopN <= 0 {
		errs = append(errs, errors.New("TOP_N must be positive"))
	}

	cfg.ScoreMetric = getEnv("SCORE_METRIC", optimization.ScoreNetPnLPercentage)
	if _, err := optimization.ScorerByName(cfg.ScoreMetric); err != nil {
		errs = append(errs, fmt.Errorf("invalid SCORE_METRIC: %v", err))
	}

	cfg.MinTrades = getEnvAsInt("MIN_TRADES", 0)
	if cfg.MinTrades < 0 {
		errs = append(errs, errors.New("MIN_TRADES cannot be negative"))
	}

	cfg.MarginBasis, err = analytics.ParseMarginBasis(getEnv("MARGIN_BASIS", string(analytics.MarginBasisAverage)))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid MARGIN_BASIS: %v", err))
	}

	// Stream client
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, errors.New("RECONNECT_DELAY_SECONDS must be positive"))
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, errors.New("MAX_RECONNECT_ATTEMPTS cannot be negative"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w: %w", errors.Join(errs...), ports.ErrInvalidConfiguration)
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
