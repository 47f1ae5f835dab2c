package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramPollTimeout int    `env:"TELEGRAM_POLL_TIMEOUT,default=60"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`

	DBDriver          string        `env:"DB_DRIVER,default=postgres"`
	DBHost            string        `env:"DB_HOST,default=localhost"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER"`
	DBPassword        string        `env:"DB_PASSWORD"`
	DBName            string        `env:"DB_NAME,default=pricewatch"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBPath            string        `env:"DB_PATH,default=pricewatch.db"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	CatalogPath string `env:"CATALOG_PATH,default=config/catalog.yaml"`

	MonitorInterval  time.Duration `env:"MONITOR_INTERVAL,default=60s"`
	PriceCallTimeout time.Duration `env:"PRICE_CALL_TIMEOUT,default=10s"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT,default=10s"`
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS,default=3"`
	RetryMinDelay    time.Duration `env:"RETRY_MIN_DELAY,default=1s"`
	RetryMaxDelay    time.Duration `env:"RETRY_MAX_DELAY,default=5s"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY,default=8"`

	PrimarySource       string        `env:"PRIMARY_SOURCE,default=binance"`
	BinanceBaseURL      string        `env:"BINANCE_BASE_URL,default=https://api.binance.com"`
	CoinbaseBaseURL     string        `env:"COINBASE_BASE_URL,default=https://api.coinbase.com"`
	CoinbaseRatePerSec  float64       `env:"COINBASE_RATE_PER_SEC,default=5"`
	BinanceStreamOn     bool          `env:"BINANCE_STREAM_ENABLED,default=false"`
	BinanceStreamURL    string        `env:"BINANCE_STREAM_URL,default=wss://stream.binance.com:9443/ws/!miniTicker@arr"`
	BinanceStreamMaxAge time.Duration `env:"BINANCE_STREAM_MAX_AGE,default=2m"`

	SessionTTL           time.Duration `env:"SESSION_TTL,default=24h"`
	SessionSweepSchedule string        `env:"SESSION_SWEEP_SCHEDULE,default=@every 1h"`
}

func Load(ctx context.Context) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER is required for postgres", domain.ErrInvalidConfig)
		}
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("%w: DB_PATH is required for sqlite", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown DB_DRIVER %q", domain.ErrInvalidConfig, c.DBDriver)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("%w: MONITOR_INTERVAL must be positive", domain.ErrInvalidConfig)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%w: RETRY_MAX_ATTEMPTS must be at least 1", domain.ErrInvalidConfig)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("%w: FETCH_CONCURRENCY must be at least 1", domain.ErrInvalidConfig)
	}
	return nil
}
