package ledger

import (
	"context"
	"encoding/json"

	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/models"

	"go.uber.org/zap"
)

// cacheContext bounds a cache call by CacheTimeout. It survives cancellation
// of ctx so post-commit maintenance still runs for abandoned requests.
func (l *Ledger) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), l.cfg.CacheTimeout)
}

// fillBalance populates the balance key unless a newer snapshot is already there.
func (l *Ledger) fillBalance(ctx context.Context, b *models.Balance) {
	if l.cache == nil {
		return
	}
	key := cache.BalanceKey(b.UserId)
	payload, err := json.Marshal(b)
	if err != nil {
		l.logger.Warn("Failed to encode balance for cache", zap.String("user_id", b.UserId), zap.Error(err))
		return
	}

	cctx, cancel := l.cacheContext(ctx)
	defer cancel()
	if _, err := l.cache.SetIfNewer(cctx, key, b.Version, payload, l.cfg.BalanceTTL); err != nil {
		l.logger.Warn("Failed to populate balance cache", zap.String("key", key), zap.Error(err))
	}
}

// publishBalance runs after commit: it writes the committed snapshot through
// and drops the user's listings. A failed write-through deletes the key.
func (l *Ledger) publishBalance(ctx context.Context, b *models.Balance) {
	if l.cache == nil {
		return
	}
	key := cache.BalanceKey(b.UserId)

	written := false
	if payload, err := json.Marshal(b); err == nil {
		cctx, cancel := l.cacheContext(ctx)
		_, err = l.cache.SetIfNewer(cctx, key, b.Version, payload, l.cfg.BalanceTTL)
		cancel()
		if err == nil {
			written = true
		} else {
			l.logger.Warn("Balance write-through failed, invalidating", zap.String("key", key), zap.Error(err))
		}
	}
	if !written {
		l.dropKeys(ctx, key)
	}

	l.invalidateEntries(ctx, b.UserId)
}

func (l *Ledger) invalidateEntries(ctx context.Context, userId string) {
	if l.cache == nil {
		return
	}
	prefix := cache.EntriesPrefix(userId)
	cctx, cancel := l.cacheContext(ctx)
	defer cancel()
	if err := l.cache.DeleteByPrefix(cctx, prefix); err != nil {
		l.logger.Warn("Failed to invalidate entry listings", zap.String("prefix", prefix), zap.Error(err))
	}
}

func (l *Ledger) dropKeys(ctx context.Context, keys ...string) {
	cctx, cancel := l.cacheContext(ctx)
	defer cancel()
	if err := l.cache.Delete(cctx, keys...); err != nil {
		l.logger.Error("Failed to invalidate cache keys", zap.Strings("keys", keys), zap.Error(err))
	}
}
