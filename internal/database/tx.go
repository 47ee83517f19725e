package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ledgerTx holds the database write lock from BeginTx until Commit or Rollback,
// so row reads inside it are already exclusive.
type ledgerTx struct {
	service *Service
	conn    *sql.Conn
	tx      *sql.Tx
	done    bool
}

func (t *ledgerTx) LockBalance(ctx context.Context, userId string) (*models.Balance, error) {
	b, err := scanBalance(t.tx.QueryRowContext(ctx, queryGetBalance, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, userId)
		}
		return nil, classify(err)
	}
	return b, nil
}

func (t *ledgerTx) UpdateBalance(ctx context.Context, b *models.Balance) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateBalance,
		b.TotalBalance.String(), b.AvailableBalance.String(), b.LockedBalance.String(),
		b.TotalShares.String(), b.SharePrice.String(), b.TotalYieldEarned.String(),
		b.UpdatedAt, b.Id, b.Version)
	if err != nil {
		zap.L().Error("Failed to update balance", zap.String("user_id", b.UserId), zap.Error(err))
		return classify(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rows == 0 {
		return fmt.Errorf("balance %s changed underneath the lock (version %d)", b.Id, b.Version)
	}

	b.Version++
	return nil
}

func (t *ledgerTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	args, err := entryArgs(e)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, queryInsertEntry, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateReference, e.ExternalReference)
		}
		return classify(err)
	}
	return nil
}

func (t *ledgerTx) LockEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error) {
	e, err := scanEntry(t.tx.QueryRowContext(ctx, queryGetEntry, entryId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrEntryNotFound, entryId)
		}
		return nil, classify(err)
	}
	return e, nil
}

func (t *ledgerTx) GetEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	e, err := scanEntry(t.tx.QueryRowContext(ctx, queryGetEntryByReference, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	result, err := t.tx.ExecContext(ctx, queryUpdateEntry,
		string(e.Status), nullString(e.ExternalReference), nullInt(e.BlockHeight), nullInt(e.GasUsed),
		nullDecimal(e.GasFee), nullString(e.ErrorMessage), metadata,
		nullTime(e.ConfirmedAt), nullTime(e.ProcessedAt), e.UpdatedAt, e.Id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateReference, e.ExternalReference)
		}
		return classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", store.ErrEntryNotFound, e.Id)
	}
	return nil
}

func (t *ledgerTx) Commit(_ context.Context) error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	defer t.service.release(t.conn)

	if err := t.tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// Rollback is safe to call after Commit
func (t *ledgerTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.service.release(t.conn)

	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return classify(err)
	}
	return nil
}
