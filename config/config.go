package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradesentry/internal/adapters/logger" // Import the logger package for LogLevel
)

// DetectorMode selects the closure-detection strategy at construction time.
type DetectorMode string

const (
	DetectPoll DetectorMode = "poll" // diff successive full open-position snapshots
	DetectFeed DetectorMode = "feed" // consume discrete transition notifications
)

// Config holds all application configuration.
type Config struct {
	// Identity and remote ledger
	AccountID      string        // unique identifier of this account/terminal (e.g. FTMO_01)
	ServerURL      string        // base URL of the remote ledger
	RequestTimeout time.Duration // per-request timeout for ledger calls

	// History synchronization
	EnableHistorySync bool
	HistoryDays       int // horizon for backfill, 0 = unbounded

	// Detection
	Detector     DetectorMode
	PollInterval time.Duration // observation cycle period
	StrategyID   int64         // strategy id stamped on records when the source carries none

	// Upstream source (Binance USD-M futures)
	APIKey    string
	SecretKey string
	IsTestnet bool
	Symbols   []string // symbols whose positions are observed

	// Journal
	JournalPath string

	// Drawdown reporting
	DrawdownEveryCycle bool // post an account snapshot on cycles without closures

	// Metrics
	EnableMetrics bool
	MetricsAddr   string // listen address of the Prometheus endpoint

	// Logging
	LogLevel logger.LogLevel
}

// Load loads configuration from environment variables (.env file).
func Load() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Identity. The engine refuses to start without it: reporting trades
	// under an undefined account identity is worse than not starting.
	cfg.AccountID = getEnv("ACCOUNT_ID", "")
	if cfg.AccountID == "" {
		errs = append(errs, "ACCOUNT_ID must be set")
	}

	cfg.ServerURL = strings.TrimRight(getEnv("SERVER_URL", ""), "/")
	if cfg.ServerURL == "" {
		errs = append(errs, "SERVER_URL must be set")
	} else if _, urlErr := url.ParseRequestURI(cfg.ServerURL); urlErr != nil {
		errs = append(errs, fmt.Sprintf("invalid SERVER_URL: %v", urlErr))
	}

	timeoutSeconds := getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)
	if timeoutSeconds <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	// History synchronization
	cfg.EnableHistorySync = getEnvAsBool("ENABLE_HISTORY_SYNC", true)
	cfg.HistoryDays, err = getEnvAsIntRequired("HISTORY_DAYS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HISTORY_DAYS: %v", err))
	} else if cfg.HistoryDays < 0 {
		errs = append(errs, "HISTORY_DAYS cannot be negative (0 = unbounded)")
	}

	// Detection
	switch mode := DetectorMode(strings.ToLower(getEnv("DETECTOR_MODE", string(DetectPoll)))); mode {
	case DetectPoll, DetectFeed:
		cfg.Detector = mode
	default:
		errs = append(errs, fmt.Sprintf("DETECTOR_MODE must be %q or %q, got %q", DetectPoll, DetectFeed, mode))
	}

	pollSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 5)
	if pollSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	strategyID, err := getEnvAsInt64Required("STRATEGY_ID", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STRATEGY_ID: %v", err))
	} else if strategyID < 0 {
		errs = append(errs, "STRATEGY_ID cannot be negative")
	}
	cfg.StrategyID = strategyID

	// Upstream source
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	symbolsStr := getEnv("SYMBOLS", "ETHUSDT")
	for _, s := range strings.Split(symbolsStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Symbols = append(cfg.Symbols, strings.ToUpper(s))
		}
	}
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must name at least one symbol")
	}

	// Journal
	cfg.JournalPath = getEnv("JOURNAL_PATH", "./data/tradesentry.db")
	if cfg.JournalPath == "" {
		errs = append(errs, "JOURNAL_PATH must be set")
	}

	// Drawdown reporting
	cfg.DrawdownEveryCycle = getEnvAsBool("DRAWDOWN_EVERY_CYCLE", true)

	// Metrics
	cfg.EnableMetrics = getEnvAsBool("ENABLE_METRICS", true)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":2112")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	if getEnvAsBool("DEBUG", false) {
		logLevelStr = "DEBUG"
	}
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
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
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsInt64Required(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
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
