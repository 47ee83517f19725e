// Package ledger applies balance mutations and entry state transitions
// atomically against a store.LedgerStore, and serves cache-first reads.
//
// Every write goes through one store transaction holding the user's balance
// row lock. Cache keys for the user are refreshed or dropped after commit;
// the cache is never consulted on the write path.
package ledger

import (
	"context"
	"errors"
	"time"

	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

type Config struct {
	LockTimeout  time.Duration
	MaxRetries   uint64
	RetryBase    time.Duration
	CacheTimeout time.Duration
	BalanceTTL   time.Duration
	EntriesTTL   time.Duration
}

// DefaultConfig mirrors the environment defaults
func DefaultConfig() Config {
	return Config{
		LockTimeout:  2 * time.Second,
		MaxRetries:   3,
		RetryBase:    50 * time.Millisecond,
		CacheTimeout: 50 * time.Millisecond,
		BalanceTTL:   5 * time.Minute,
		EntriesTTL:   60 * time.Second,
	}
}

func ConfigFrom(cfg *models.Config) Config {
	return Config{
		LockTimeout:  cfg.Ledger.LockTimeout,
		MaxRetries:   cfg.Ledger.MaxRetries,
		RetryBase:    cfg.Ledger.RetryBase,
		CacheTimeout: cfg.Cache.Timeout,
		BalanceTTL:   cfg.Cache.BalanceTTL,
		EntriesTTL:   cfg.Cache.EntriesTTL,
	}
}

type Ledger struct {
	store   store.LedgerStore
	cache   cache.Cache
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
	clock   Clock
}

type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithClock(c Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// New builds a Ledger. A nil cache disables caching; reads go straight to the store.
func New(st store.LedgerStore, c cache.Cache, cfg Config, opts ...Option) *Ledger {
	defaults := DefaultConfig()
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaults.LockTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaults.RetryBase
	}
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = defaults.CacheTimeout
	}
	if cfg.BalanceTTL <= 0 {
		cfg.BalanceTTL = defaults.BalanceTTL
	}
	if cfg.EntriesTTL <= 0 {
		cfg.EntriesTTL = defaults.EntriesTTL
	}

	l := &Ledger{
		store:  st,
		cache:  c,
		cfg:    cfg,
		logger: zap.L(),
		clock:  SystemClock,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EntriesFreshness is the longest an entry listing may lag behind the store.
func (l *Ledger) EntriesFreshness() time.Duration {
	return l.cfg.EntriesTTL
}

func (l *Ledger) txOptions() store.TxOptions {
	return store.TxOptions{LockTimeout: l.cfg.LockTimeout}
}

// withRetry runs fn until it succeeds, fails permanently, or the retry budget
// or ctx runs out. The last store error is returned rather than ctx.Err().
func (l *Ledger) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(l.cfg.RetryBase)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(l.cfg.MaxRetries, backoff)

	var last error
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrLockTimeout) {
			l.metrics.IncLockTimeout()
		}
		if !IsRetryable(err) || ctx.Err() != nil {
			return err
		}

		last = err
		l.metrics.IncRetry(op)
		l.logger.Warn("Transient ledger error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return retry.RetryableError(err)
	})

	if err != nil && last != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return last
	}
	return err
}
