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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"savings-ledger-go/internal/accrual"
	"savings-ledger-go/internal/common"
	"savings-ledger-go/internal/config"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveMetrics(ctx context.Context, services *common.Services, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(services.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := services.ApiService.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	onceFlag := flag.Bool("once", false, "Run a single accrual pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	job := accrual.NewJob(accrual.JobConfig{
		Accruer:     services.Ledger,
		Balances:    services.Store,
		Source:      accrual.NewFileSource(cfg.Accrual.SharePriceFile),
		Interval:    cfg.Accrual.Interval,
		BatchSize:   cfg.Accrual.BatchSize,
		Concurrency: cfg.Accrual.Concurrency,
	})

	if *onceFlag {
		summary, err := job.RunOnce(ctx)
		if err != nil {
			zap.L().Fatal("Accrual pass failed", zap.Error(err))
		}
		zap.L().Info("Accrual pass complete",
			zap.String("share_price", summary.SharePrice.String()),
			zap.Int("accrued", summary.Accrued),
			zap.Int("failed", summary.Failed),
			zap.String("yield", summary.Yield.String()))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, services, cfg.MetricsAddr)
		})
	}
	g.Go(func() error {
		if err := job.Start(gctx); err != nil {
			return err
		}
		select {
		case <-gctx.Done():
		case <-job.Done():
		}
		job.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.L().Fatal("Accrual service failed", zap.Error(err))
	}
	zap.L().Info("Accrual service stopped")
}
