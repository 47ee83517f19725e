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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"savings-ledger-go/internal/api"
	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/config"
	"savings-ledger-go/internal/database"
	"savings-ledger-go/internal/ledger"
	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/postgres"
	"savings-ledger-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store      store.LedgerStore
	Cache      cache.Cache
	Ledger     *ledger.Ledger
	ApiService *api.LedgerService
	Registry   *prometheus.Registry

	redisClient *redis.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the store, cache, ledger and metrics registry
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	st, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	services := &Services{Store: st}

	if cfg.Cache.RedisAddr != "" {
		zap.L().Info("Connecting to Redis", zap.String("addr", cfg.Cache.RedisAddr), zap.Int("db", cfg.Cache.RedisDB))
		services.redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Cache.RedisAddr,
			Password:     cfg.Cache.RedisPassword,
			DB:           cfg.Cache.RedisDB,
			ReadTimeout:  cfg.Cache.Timeout,
			WriteTimeout: cfg.Cache.Timeout,
		})
		// an unreachable cache degrades reads to the store, so this is not fatal
		if err := services.redisClient.Ping(ctx).Err(); err != nil {
			zap.L().Warn("Redis ping failed, continuing with degraded cache", zap.Error(err))
		}
		services.Cache = cache.NewRedis(services.redisClient)
	} else {
		zap.L().Info("Using in-process cache")
		services.Cache = cache.NewMemory()
	}

	services.Registry = prometheus.NewRegistry()
	services.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services.Ledger = ledger.New(st, services.Cache, ledger.ConfigFrom(cfg),
		ledger.WithMetrics(ledger.NewMetrics(services.Registry)))
	services.ApiService = api.NewLedgerService(st, services.Ledger)

	return services, nil
}

// InitializeStore opens the configured backend without cache or ledger.
// Useful for read-only operations like reporting balances.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.LedgerStore, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		zap.L().Info("Connecting to PostgreSQL")
		return postgres.New(ctx, cfg.Database)
	case config.DriverSQLite, "":
		return database.NewService(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func (cs *Services) Close() {
	if cs.redisClient != nil {
		if err := cs.redisClient.Close(); err != nil {
			zap.L().Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
