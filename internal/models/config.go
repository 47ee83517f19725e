package models

import "time"

// Config represents the application configuration
type Config struct {
	Database    DatabaseConfig
	Cache       CacheConfig
	Ledger      LedgerConfig
	Accrual     AccrualConfig
	MetricsAddr string `env:"METRICS_ADDR"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	Path            string        `env:"DATABASE_PATH" envDefault:"ledger.db"`
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"30s"`
	PingTimeout     time.Duration `env:"DB_PING_TIMEOUT" envDefault:"5s"`
}

// CacheConfig holds read-through cache settings. An empty RedisAddr selects the in-process cache.
type CacheConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	Timeout       time.Duration `env:"CACHE_TIMEOUT" envDefault:"50ms"`
	BalanceTTL    time.Duration `env:"BALANCE_CACHE_TTL" envDefault:"5m"`
	EntriesTTL    time.Duration `env:"ENTRIES_CACHE_TTL" envDefault:"60s"`
}

// LedgerConfig holds mutation protocol settings
type LedgerConfig struct {
	LockTimeout time.Duration `env:"LEDGER_LOCK_TIMEOUT" envDefault:"2s"`
	MaxRetries  uint64        `env:"LEDGER_MAX_RETRIES" envDefault:"3"`
	RetryBase   time.Duration `env:"LEDGER_RETRY_BASE" envDefault:"50ms"`
}

// AccrualConfig holds yield accrual job settings
type AccrualConfig struct {
	Interval       time.Duration `env:"ACCRUAL_INTERVAL" envDefault:"1h"`
	BatchSize      int           `env:"ACCRUAL_BATCH_SIZE" envDefault:"100"`
	Concurrency    int           `env:"ACCRUAL_CONCURRENCY" envDefault:"4"`
	SharePriceFile string        `env:"SHARE_PRICE_FILE" envDefault:"share_price.yaml"`
}
