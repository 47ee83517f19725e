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

package config

import (
	"fmt"
	"strings"

	"savings-ledger-go/internal/models"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func Load() (*models.Config, error) {
	cfg := &models.Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *models.Config) error {
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	switch cfg.Database.Driver {
	case DriverSQLite:
		if cfg.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Database.Driver)
	}

	if cfg.Cache.Timeout <= 0 {
		return fmt.Errorf("invalid CACHE_TIMEOUT: %v", cfg.Cache.Timeout)
	}
	if cfg.Cache.BalanceTTL <= 0 || cfg.Cache.EntriesTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if cfg.Ledger.LockTimeout <= 0 {
		return fmt.Errorf("invalid LEDGER_LOCK_TIMEOUT: %v", cfg.Ledger.LockTimeout)
	}
	if cfg.Accrual.BatchSize <= 0 {
		return fmt.Errorf("ACCRUAL_BATCH_SIZE must be positive, got %d", cfg.Accrual.BatchSize)
	}
	if cfg.Accrual.Concurrency <= 0 {
		cfg.Accrual.Concurrency = 1
	}
	return nil
}
