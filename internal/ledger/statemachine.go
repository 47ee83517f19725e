package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateEntry records a pending entry without touching the balance. A draft
// whose external reference is already stored for the same request returns the
// stored entry.
func (l *Ledger) CreateEntry(ctx context.Context, userId string, draft models.EntryDraft) (*models.LedgerEntry, error) {
	if userId == "" {
		return nil, invalidRequest("user id is required")
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	if _, err := l.store.GetBalance(ctx, userId); err != nil {
		return nil, err
	}

	var entry *models.LedgerEntry
	var created bool
	err := l.withRetry(ctx, "create_entry", func(ctx context.Context) error {
		var err error
		entry, created, err = l.createEntryOnce(ctx, userId, draft)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		l.logger.Info("Pending entry recorded",
			zap.String("user_id", userId),
			zap.String("entry_id", entry.Id),
			zap.String("entry_type", string(entry.Type)),
			zap.String("amount", entry.Amount.String()))
		l.invalidateEntries(ctx, userId)
	}
	return entry, nil
}

func (l *Ledger) createEntryOnce(ctx context.Context, userId string, draft models.EntryDraft) (*models.LedgerEntry, bool, error) {
	tx, err := l.store.BeginTx(ctx, l.txOptions())
	if err != nil {
		return nil, false, err
	}
	defer l.rollback(ctx, tx)

	if draft.ExternalReference != "" {
		stored, err := storedReplay(ctx, tx, userId, draft)
		if err != nil || stored != nil {
			return stored, false, err
		}
	}

	now := l.clock.Now()
	e := &models.LedgerEntry{
		Id:                uuid.New().String(),
		UserId:            userId,
		Type:              draft.Type,
		Status:            models.EntryStatusPending,
		Amount:            draft.Amount,
		Shares:            draft.Shares,
		ExternalReference: draft.ExternalReference,
		Metadata:          copyMetadata(draft.Metadata),
		SubmittedAt:       now,
		UpdatedAt:         now,
	}
	if err := tx.InsertEntry(ctx, e); err != nil {
		if errors.Is(err, store.ErrDuplicateReference) && draft.ExternalReference != "" {
			l.rollback(ctx, tx)
			return l.concurrentReplay(ctx, userId, draft, err)
		}
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// storedReplay returns the entry already recorded for the draft's reference, nil
// when the reference is new, or ErrDuplicateReference when it belongs to another request.
func storedReplay(ctx context.Context, tx store.LedgerTx, userId string, draft models.EntryDraft) (*models.LedgerEntry, error) {
	stored, err := tx.GetEntryByReference(ctx, draft.ExternalReference)
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	case !sameRequest(stored, userId, draft):
		return nil, fmt.Errorf("%w: %s belongs to entry %s", store.ErrDuplicateReference, draft.ExternalReference, stored.Id)
	}
	return stored, nil
}

// concurrentReplay resolves an insert that lost the race for its reference to
// an identical request committed in between.
func (l *Ledger) concurrentReplay(ctx context.Context, userId string, draft models.EntryDraft, insertErr error) (*models.LedgerEntry, bool, error) {
	tx, err := l.store.BeginTx(ctx, l.txOptions())
	if err != nil {
		return nil, false, err
	}
	defer l.rollback(ctx, tx)

	stored, err := storedReplay(ctx, tx, userId, draft)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, insertErr
	}
	l.logger.Info("Concurrent entry request resolved to stored entry",
		zap.String("user_id", userId),
		zap.String("entry_id", stored.Id),
		zap.String("external_reference", stored.ExternalReference))
	return stored, false, nil
}

// TransitionEntry moves a pending entry into a terminal status that carries no
// balance effect. Repeating a transition the entry already made is a no-op.
// Entries whose confirmation moves the balance must be confirmed through
// ApplyMutation.
func (l *Ledger) TransitionEntry(ctx context.Context, entryId string, status models.EntryStatus, effect models.EffectFields) (*models.LedgerEntry, error) {
	if entryId == "" {
		return nil, invalidRequest("entry id is required")
	}
	if !status.IsTerminal() {
		return nil, invalidRequest("target status %q is not terminal", status)
	}
	if status == models.EntryStatusFailed && effect.ErrorMessage == "" {
		return nil, invalidRequest("failing entry %s requires an error message", entryId)
	}

	var entry *models.LedgerEntry
	var changed bool
	err := l.withRetry(ctx, "transition", func(ctx context.Context) error {
		var err error
		entry, changed, err = l.transitionOnce(ctx, entryId, status, effect)
		return err
	})
	l.metrics.IncTransition(string(status), transitionLabel(err, changed))
	if err != nil {
		return nil, err
	}

	if changed {
		l.logger.Info("Entry transitioned",
			zap.String("entry_id", entry.Id),
			zap.String("user_id", entry.UserId),
			zap.String("status", string(entry.Status)),
			zap.String("error_message", entry.ErrorMessage))
		l.invalidateEntries(ctx, entry.UserId)
	}
	return entry, nil
}

func (l *Ledger) transitionOnce(ctx context.Context, entryId string, status models.EntryStatus, effect models.EffectFields) (*models.LedgerEntry, bool, error) {
	tx, err := l.store.BeginTx(ctx, l.txOptions())
	if err != nil {
		return nil, false, err
	}
	defer l.rollback(ctx, tx)

	e, err := tx.LockEntry(ctx, entryId)
	if err != nil {
		return nil, false, err
	}

	if e.Status == status {
		return e, false, nil
	}
	if e.Status.IsTerminal() {
		return nil, false, &InvalidTransitionError{
			EntryId: e.Id,
			From:    e.Status,
			To:      status,
			Reason:  "entry is already terminal",
		}
	}
	if status == models.EntryStatusConfirmed && e.Type.CarriesBalanceEffect() {
		return nil, false, &InvalidTransitionError{
			EntryId: e.Id,
			From:    e.Status,
			To:      status,
			Reason:  fmt.Sprintf("%s entries are confirmed together with their balance mutation", e.Type),
		}
	}

	now := l.clock.Now()
	e.Status = status
	e.ProcessedAt = &now
	e.UpdatedAt = now
	switch status {
	case models.EntryStatusConfirmed:
		e.ConfirmedAt = &now
		applyConfirmationFields(e, effect)
	case models.EntryStatusFailed:
		e.ErrorMessage = effect.ErrorMessage
		e.Metadata = mergeMetadata(e.Metadata, effect.Metadata)
	case models.EntryStatusCancelled:
		e.Metadata = mergeMetadata(e.Metadata, effect.Metadata)
	}

	if err := tx.UpdateEntry(ctx, e); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// applyConfirmationFields records the on-chain details that accompany confirmation
func applyConfirmationFields(e *models.LedgerEntry, effect models.EffectFields) {
	if effect.ExternalReference != "" {
		e.ExternalReference = effect.ExternalReference
	}
	if effect.BlockHeight != nil {
		e.BlockHeight = effect.BlockHeight
	}
	if effect.GasUsed != nil {
		e.GasUsed = effect.GasUsed
	}
	if effect.GasFee != nil {
		e.GasFee = effect.GasFee
	}
	e.Metadata = mergeMetadata(e.Metadata, effect.Metadata)
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	out := copyMetadata(base)
	if out == nil {
		out = make(map[string]string, len(extra))
	}
	maps.Copy(out, extra)
	return out
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

func transitionLabel(err error, changed bool) string {
	switch {
	case err == nil && changed:
		return "applied"
	case err == nil:
		return "replayed"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid"
	case IsClientError(err):
		return "rejected"
	}
	return "error"
}
