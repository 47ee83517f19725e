package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// GetBalance serves the user's balance from cache, falling back to the store.
func (l *Ledger) GetBalance(ctx context.Context, userId string) (*models.Balance, error) {
	if userId == "" {
		return nil, invalidRequest("user id is required")
	}

	key := cache.BalanceKey(userId)
	var cached models.Balance
	if l.cacheGet(ctx, "balance", key, &cached) {
		return &cached, nil
	}

	b, err := l.store.GetBalance(ctx, userId)
	if err != nil {
		return nil, err
	}
	l.fillBalance(ctx, b)
	return b, nil
}

// ListEntries returns a page of the user's entries, newest first. Results may
// lag the store by up to EntriesFreshness.
func (l *Ledger) ListEntries(ctx context.Context, userId string, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	if userId == "" {
		return nil, invalidRequest("user id is required")
	}
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	key := cache.EntriesKey(userId, filter)
	var cached []models.LedgerEntry
	if l.cacheGet(ctx, "entries", key, &cached) {
		return cached, nil
	}

	entries, err := l.store.ListEntries(ctx, userId, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}

	if l.cache != nil {
		if payload, err := json.Marshal(entries); err == nil {
			cctx, cancel := l.cacheContext(ctx)
			defer cancel()
			if err := l.cache.Set(cctx, key, payload, l.cfg.EntriesTTL); err != nil {
				l.logger.Warn("Failed to cache entry listing", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return entries, nil
}

func normalizeFilter(f models.EntryFilter) (models.EntryFilter, error) {
	for _, t := range f.Types {
		if !t.Valid() {
			return f, invalidRequest("unknown entry type %q", t)
		}
	}
	for _, s := range f.Statuses {
		if !s.Valid() {
			return f, invalidRequest("unknown entry status %q", s)
		}
	}
	if f.Offset < 0 {
		return f, invalidRequest("offset must be non-negative, got %d", f.Offset)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && !f.Until.After(f.Since) {
		return f, invalidRequest("empty time window")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}
	return f, nil
}

type Reconciliation struct {
	UserId       string
	TotalBalance decimal.Decimal
	EntriesNet   decimal.Decimal
	Totals       models.EntryTotals
	Difference   decimal.Decimal
}

func (r Reconciliation) Balanced() bool {
	return r.Difference.Abs().LessThanOrEqual(InvariantEpsilon)
}

// Reconcile compares the stored total with the signed sum of confirmed entries.
func (l *Ledger) Reconcile(ctx context.Context, userId string) (*Reconciliation, error) {
	b, err := l.store.GetBalance(ctx, userId)
	if err != nil {
		return nil, err
	}
	totals, err := l.store.SumConfirmedEntries(ctx, userId)
	if err != nil {
		return nil, err
	}

	r := &Reconciliation{
		UserId:       userId,
		TotalBalance: b.TotalBalance,
		EntriesNet:   totals.Net(),
		Totals:       totals,
	}
	r.Difference = r.TotalBalance.Sub(r.EntriesNet)

	if !r.Balanced() {
		l.logger.Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("total_balance", r.TotalBalance.String()),
			zap.String("entries_net", r.EntriesNet.String()),
			zap.String("difference", r.Difference.String()))
	} else {
		l.logger.Debug("Balance reconciliation successful",
			zap.String("user_id", userId),
			zap.String("total_balance", r.TotalBalance.String()))
	}
	return r, nil
}

// cacheGet decodes key into dst. Any cache failure counts as a miss.
func (l *Ledger) cacheGet(ctx context.Context, kind, key string, dst any) bool {
	if l.cache == nil {
		return false
	}
	cctx, cancel := l.cacheContext(ctx)
	defer cancel()

	raw, err := l.cache.Get(cctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		l.metrics.IncCache(kind, "miss")
		return false
	case err != nil:
		l.metrics.IncCache(kind, "error")
		l.logger.Warn("Cache read failed, reading from store", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		l.metrics.IncCache(kind, "error")
		l.logger.Warn("Discarding undecodable cache value", zap.String("key", key), zap.Error(err))
		l.dropKeys(ctx, key)
		return false
	}
	l.metrics.IncCache(kind, "hit")
	return true
}
