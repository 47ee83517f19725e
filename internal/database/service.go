/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

// defaultBusyTimeout applies to statements outside a ledger transaction
const defaultBusyTimeout = 5 * time.Second

// Service is the SQLite LedgerStore. SQLite locks the whole database for
// writing, so ledger transactions serialize across users as well as within one.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Every connection to :memory: opens a private database
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		cfg.ConnMaxIdleTime = 0
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("%w: unable to ping database: %v", store.ErrStoreUnavailable, err)
	}

	service := &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := service.initSchema(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=%d",
		path, sep, defaultBusyTimeout.Milliseconds())
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (s *Service) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// BeginTx pins a connection, bounds its busy wait by the lock timeout and opens
// an immediate (write-locking) transaction on it.
func (s *Service) BeginTx(ctx context.Context, opts store.TxOptions) (store.LedgerTx, error) {
	wait := opts.LockTimeout
	if wait <= 0 {
		wait = defaultBusyTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
	}
	if wait <= 0 {
		return nil, fmt.Errorf("%w: deadline expired before begin", store.ErrLockTimeout)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		if acquireCtx.Err() != nil {
			return nil, fmt.Errorf("%w: waiting for connection: %v", store.ErrLockTimeout, err)
		}
		return nil, classify(err)
	}

	// Milliseconds floor at 1, zero would disable the busy handler entirely
	ms := wait.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", ms)); err != nil {
		s.release(conn)
		return nil, classify(err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		s.release(conn)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", store.ErrLockTimeout, err)
		}
		return nil, classify(err)
	}

	return &ledgerTx{service: s, conn: conn, tx: tx}, nil
}

// release restores the pooled connection's busy timeout and hands it back
func (s *Service) release(conn *sql.Conn) {
	query := fmt.Sprintf("PRAGMA busy_timeout = %d", defaultBusyTimeout.Milliseconds())
	if _, err := conn.ExecContext(context.Background(), query); err != nil {
		zap.L().Warn("Failed to reset busy timeout", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		zap.L().Warn("Failed to return connection to pool", zap.Error(err))
	}
}
