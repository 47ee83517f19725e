// Package postgres is the PostgreSQL LedgerStore. Balance rows are locked
// with SELECT ... FOR UPDATE under a transaction-local lock_timeout, so
// mutations for different users never wait on each other.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ store.LedgerStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New connects, pings and migrates the database described by cfg.URL.
func New(ctx context.Context, cfg models.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", store.ErrStoreUnavailable, err)
	}

	s := NewFromPool(pool)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	zap.L().Info("PostgreSQL store initialized", zap.Int32("max_conns", poolCfg.MaxConns))
	return s, nil
}

// NewFromPool wraps an existing, already migrated pool
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// BeginTx opens a read-committed transaction whose row lock waits are bounded
// by opts.LockTimeout.
func (s *Store) BeginTx(ctx context.Context, opts store.TxOptions) (store.LedgerTx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classify(err)
	}

	if opts.LockTimeout > 0 {
		ms := max(opts.LockTimeout.Milliseconds(), 1)
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return nil, classify(err)
		}
	}
	return &ledgerTx{tx: tx}, nil
}
