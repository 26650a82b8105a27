package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

const (
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultBackend          = BackendDynamoDB
	defaultRetryAttempts    = 10
	defaultRetryInitial     = 5 * time.Millisecond
	defaultRetryMax         = 250 * time.Millisecond
	defaultPayoutWorkers    = 8
	defaultRiskConcurrency  = 16
	defaultRiskTimeout      = 5 * time.Second
	defaultStuckThreshold   = 20 * time.Minute
	defaultShutdownPeriod   = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultMetricsNamespace = "wallet"
)

// Tables holds the DynamoDB table names.
type Tables struct {
	Wallets      string
	Ledger       string
	Transactions string
	Batches      string
	Idempotency  string
}

// Config captures the runtime configuration of the API server and the lambdas.
type Config struct {
	Port             string
	LogLevel         string
	StoreBackend     string
	Tables           Tables
	SQSQueueURL      string
	RedisURL         string
	JWTSecret        string
	IdempotencyTTL   time.Duration
	ShutdownPeriod   time.Duration
	MetricsNamespace string

	RetryAttempts        int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	PayoutWorkers int

	RiskConcurrency int
	RiskTimeout     time.Duration
	// RiskFlagThreshold flags settled transactions at or above this major-unit
	// amount. Zero disables flagging.
	RiskFlagThreshold decimal.Decimal

	// FXFeeBasisPoints is the FX fee in basis points of the source amount.
	FXFeeBasisPoints decimal.Decimal
	// FeeWallets maps a currency to the wallet collecting fees in that currency.
	FeeWallets map[string]string

	StuckThreshold time.Duration
}

// Load reads a .env file if one is present, then populates a Config from the
// environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := Config{
		Port:             getEnv("HTTP_PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", defaultBackend)),
		SQSQueueURL:      os.Getenv("SQS_QUEUE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", defaultMetricsNamespace),
		Tables: Tables{
			Wallets:      os.Getenv("DYNAMODB_WALLETS_TABLE_NAME"),
			Ledger:       os.Getenv("DYNAMODB_LEDGER_TABLE_NAME"),
			Transactions: os.Getenv("DYNAMODB_TRANSACTIONS_TABLE_NAME"),
			Batches:      os.Getenv("DYNAMODB_BATCHES_TABLE_NAME"),
			Idempotency:  os.Getenv("DYNAMODB_IDEMPOTENCY_TABLE_NAME"),
		},
	}

	var err error
	if cfg.RetryAttempts, err = getInt("LEDGER_RETRY_ATTEMPTS", defaultRetryAttempts); err != nil {
		return Config{}, err
	}
	if cfg.RetryInitialInterval, err = getDuration("LEDGER_RETRY_INITIAL_INTERVAL", defaultRetryInitial); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxInterval, err = getDuration("LEDGER_RETRY_MAX_INTERVAL", defaultRetryMax); err != nil {
		return Config{}, err
	}
	if cfg.PayoutWorkers, err = getInt("PAYOUT_WORKERS", defaultPayoutWorkers); err != nil {
		return Config{}, err
	}
	if cfg.RiskConcurrency, err = getInt("RISK_GATE_CONCURRENCY", defaultRiskConcurrency); err != nil {
		return Config{}, err
	}
	if cfg.RiskTimeout, err = getDuration("RISK_GATE_TIMEOUT", defaultRiskTimeout); err != nil {
		return Config{}, err
	}
	if cfg.StuckThreshold, err = getDuration("STUCK_TRANSACTION_THRESHOLD", defaultStuckThreshold); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	cfg.FXFeeBasisPoints = decimal.Zero
	if v := os.Getenv("FX_FEE_BPS"); v != "" {
		bps, err := decimal.NewFromString(v)
		if err != nil || bps.IsNegative() {
			return Config{}, fmt.Errorf("invalid FX_FEE_BPS %q", v)
		}
		cfg.FXFeeBasisPoints = bps
	}

	cfg.RiskFlagThreshold = decimal.Zero
	if v := os.Getenv("RISK_FLAG_THRESHOLD"); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil || threshold.IsNegative() {
			return Config{}, fmt.Errorf("invalid RISK_FLAG_THRESHOLD %q", v)
		}
		cfg.RiskFlagThreshold = threshold
	}

	if cfg.FeeWallets, err = parseFeeWallets(os.Getenv("FEE_WALLETS")); err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendDynamoDB:
		t := cfg.Tables
		if t.Wallets == "" || t.Ledger == "" || t.Transactions == "" || t.Batches == "" || t.Idempotency == "" {
			return Config{}, fmt.Errorf("one or more DynamoDB table name environment variables are not set")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// RequireQueue fails when no SQS queue is configured.
func (c Config) RequireQueue() error {
	if c.SQSQueueURL == "" {
		return fmt.Errorf("SQS_QUEUE_URL environment variable not set")
	}
	return nil
}

// Address returns the listen address for the HTTP server.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// parseFeeWallets parses "USD=wallet-id,EUR=wallet-id".
func parseFeeWallets(raw string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		currency, walletID, ok := strings.Cut(strings.TrimSpace(pair), "=")
		currency = strings.ToUpper(strings.TrimSpace(currency))
		walletID = strings.TrimSpace(walletID)
		if !ok || currency == "" || walletID == "" {
			return nil, fmt.Errorf("invalid FEE_WALLETS entry %q", pair)
		}
		out[currency] = walletID
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
