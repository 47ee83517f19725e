// Package accrual marks every share-holding balance to the current share price
// on an interval and harvests the resulting yield through the ledger.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"savings-ledger-go/internal/ledger"
	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Accruer credits yield for one user
type Accruer interface {
	AccrueYield(ctx context.Context, userId string, sharePrice decimal.Decimal) (*models.Balance, *models.LedgerEntry, error)
}

// BalanceLister pages through balances that hold shares
type BalanceLister interface {
	ListBalancesWithShares(ctx context.Context, afterUserId string, limit int) ([]models.Balance, error)
}

type JobConfig struct {
	Accruer     Accruer
	Balances    BalanceLister
	Source      SharePriceSource
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

// Summary describes a single accrual pass
type Summary struct {
	SharePrice decimal.Decimal
	Accounts   int
	Accrued    int
	Skipped    int
	Failed     int
	Yield      decimal.Decimal
}

type Job struct {
	accruer     Accruer
	balances    BalanceLister
	source      SharePriceSource
	interval    time.Duration
	batchSize   int
	concurrency int

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewJob(cfg JobConfig) *Job {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Job{
		accruer:     cfg.Accruer,
		balances:    cfg.Balances,
		source:      cfg.Source,
		interval:    cfg.Interval,
		batchSize:   batch,
		concurrency: max(cfg.Concurrency, 1),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start runs a pass immediately and then one per interval until Stop or ctx ends
func (j *Job) Start(ctx context.Context) error {
	if j.interval <= 0 {
		return fmt.Errorf("accrual interval must be positive, got %s", j.interval)
	}

	go j.pollLoop(ctx)

	zap.L().Info("Yield accrual job started",
		zap.Duration("interval", j.interval),
		zap.Int("batch_size", j.batchSize),
		zap.Int("concurrency", j.concurrency))
	return nil
}

// Stop waits for the in-flight pass to finish
func (j *Job) Stop() {
	zap.L().Info("Stopping yield accrual job")
	close(j.stopChan)
	<-j.doneChan
	zap.L().Info("Yield accrual job stopped")
}

// Done is closed once the poll loop exits
func (j *Job) Done() <-chan struct{} {
	return j.doneChan
}

func (j *Job) pollLoop(ctx context.Context) {
	defer close(j.doneChan)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runLogged(ctx)

	for {
		select {
		case <-ticker.C:
			j.runLogged(ctx)
		case <-j.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	summary, err := j.RunOnce(ctx)
	if err != nil {
		zap.L().Error("Yield accrual pass failed", zap.Error(err))
		return
	}
	zap.L().Info("Yield accrual pass complete",
		zap.String("share_price", summary.SharePrice.String()),
		zap.Int("accounts", summary.Accounts),
		zap.Int("accrued", summary.Accrued),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.String("yield", summary.Yield.String()))
}

// RunOnce accrues yield for every share-holding balance at the source's
// current price. Per-user failures are counted, not returned.
func (j *Job) RunOnce(ctx context.Context) (*Summary, error) {
	price, err := j.source.SharePrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read share price: %w", err)
	}

	summary := &Summary{SharePrice: price, Yield: decimal.Zero}
	var mu sync.Mutex
	record := func(fn func(s *Summary)) {
		mu.Lock()
		fn(summary)
		mu.Unlock()
	}

	after := ""
	for {
		page, err := j.balances.ListBalancesWithShares(ctx, after, j.batchSize)
		if err != nil {
			return summary, fmt.Errorf("failed to list balances after %q: %w", after, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(j.concurrency)
		for _, b := range page {
			if !price.GreaterThan(b.SharePrice) {
				record(func(s *Summary) { s.Accounts++; s.Skipped++ })
				continue
			}
			record(func(s *Summary) { s.Accounts++ })

			g.Go(func() error {
				_, entry, err := j.accruer.AccrueYield(gctx, b.UserId, price)
				switch {
				case err == nil:
					record(func(s *Summary) {
						s.Accrued++
						s.Yield = s.Yield.Add(entry.Amount)
					})
				case errors.Is(err, ledger.ErrNothingToAccrue):
					record(func(s *Summary) { s.Skipped++ })
				case ctx.Err() != nil:
					return ctx.Err()
				default:
					zap.L().Error("Failed to accrue yield",
						zap.String("user_id", b.UserId),
						zap.String("share_price", price.String()),
						zap.Error(err))
					record(func(s *Summary) { s.Failed++ })
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}

		if len(page) < j.batchSize {
			return summary, nil
		}
		after = page[len(page)-1].UserId
	}
}
