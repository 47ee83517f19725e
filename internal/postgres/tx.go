package postgres

import (
	"context"
	"errors"
	"fmt"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ledgerTx struct {
	tx   pgx.Tx
	done bool
}

func (t *ledgerTx) LockBalance(ctx context.Context, userId string) (*models.Balance, error) {
	b, err := scanBalance(t.tx.QueryRow(ctx, queryLockBalance, userId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, classify(err)
	}
	return b, nil
}

func (t *ledgerTx) UpdateBalance(ctx context.Context, b *models.Balance) error {
	tag, err := t.tx.Exec(ctx, queryUpdateBalance,
		b.TotalBalance.String(), b.AvailableBalance.String(), b.LockedBalance.String(),
		b.TotalShares.String(), b.SharePrice.String(), b.TotalYieldEarned.String(),
		b.UpdatedAt, b.Id, b.Version)
	if err != nil {
		zap.L().Error("Failed to update balance", zap.String("user_id", b.UserId), zap.Error(err))
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance %s changed underneath the lock (version %d)", b.Id, b.Version)
	}

	b.Version++
	return nil
}

func (t *ledgerTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	metadata, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, queryInsertEntry,
		e.Id, e.UserId, string(e.Type), string(e.Status), e.Amount.String(), e.Shares.String(),
		e.ExternalReference, e.BlockHeight, e.GasUsed, decimalArg(e.GasFee),
		e.ErrorMessage, metadata, e.SubmittedAt, e.ConfirmedAt, e.ProcessedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateReference, e.ExternalReference)
		}
		return classify(err)
	}
	return nil
}

func (t *ledgerTx) LockEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx, queryLockEntry, entryId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrEntryNotFound, entryId)
		}
		return nil, classify(err)
	}
	return e, nil
}

func (t *ledgerTx) GetEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx, queryGetEntryByReference, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: reference %s", store.ErrEntryNotFound, reference)
		}
		return nil, classify(err)
	}
	return e, nil
}

func (t *ledgerTx) UpdateEntry(ctx context.Context, e *models.LedgerEntry) error {
	metadata, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, queryUpdateEntry,
		string(e.Status), e.ExternalReference, e.BlockHeight, e.GasUsed, decimalArg(e.GasFee),
		e.ErrorMessage, metadata, e.ConfirmedAt, e.ProcessedAt, e.UpdatedAt, e.Id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateReference, e.ExternalReference)
		}
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrEntryNotFound, e.Id)
	}
	return nil
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Rollback is safe to call after Commit
func (t *ledgerTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return classify(err)
	}
	return nil
}
