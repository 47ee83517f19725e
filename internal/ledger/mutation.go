package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// plan is what a mutation does to a locked balance
type plan struct {
	delta models.BalanceDelta
	ref   models.EntryRef
	// shares, when set, is recorded on the entry in place of the requested value
	shares *decimal.Decimal
	// guard runs after replay detection and before the delta is applied
	guard func(current models.Balance) error
}

// planner decides the mutation from the balance as read under lock
type planner func(current models.Balance) (plan, error)

type outcome struct {
	balance *models.Balance
	entry   *models.LedgerEntry
	changed bool
}

// ApplyMutation applies delta to the user's balance and records ref in the same
// transaction. ref is either a draft inserted as confirmed, or the ID of a
// pending entry that is confirmed by this call. Replaying a mutation whose entry
// is already confirmed returns the current state without applying delta again.
func (l *Ledger) ApplyMutation(ctx context.Context, userId string, delta models.BalanceDelta, ref models.EntryRef) (*models.Balance, *models.LedgerEntry, error) {
	if err := validateDelta(delta); err != nil {
		return nil, nil, err
	}
	if (ref.Draft == nil) == (ref.EntryId == "") {
		return nil, nil, invalidRequest("exactly one of entry draft or entry id is required")
	}
	if ref.Draft != nil {
		if err := validateDraft(*ref.Draft); err != nil {
			return nil, nil, err
		}
	}

	return l.mutate(ctx, "apply", userId, func(models.Balance) (plan, error) {
		return plan{delta: delta, ref: ref}, nil
	})
}

// AccrueYield marks the user's shares to sharePrice and credits the gain as a
// confirmed yield_harvest entry. The gain is computed from the locked row.
func (l *Ledger) AccrueYield(ctx context.Context, userId string, sharePrice decimal.Decimal) (*models.Balance, *models.LedgerEntry, error) {
	if !sharePrice.IsPositive() {
		return nil, nil, invalidRequest("share price must be positive, got %s", sharePrice)
	}

	return l.mutate(ctx, "accrue", userId, func(current models.Balance) (plan, error) {
		gain := current.TotalShares.Mul(sharePrice.Sub(current.SharePrice)).Truncate(AssetScale)
		if !gain.IsPositive() {
			return plan{}, fmt.Errorf("%w: user %s at price %s", ErrNothingToAccrue, userId, sharePrice)
		}

		price := sharePrice
		return plan{
			delta: models.BalanceDelta{
				Available:   gain,
				SharePrice:  &price,
				YieldEarned: gain,
			},
			ref: models.NewEntry(models.EntryDraft{
				Type:              models.EntryTypeYieldHarvest,
				Amount:            gain,
				Shares:            current.TotalShares,
				ExternalReference: YieldReference(userId, sharePrice),
				Metadata: map[string]string{
					"previous_share_price": current.SharePrice.String(),
					"share_price":          sharePrice.String(),
				},
			}),
		}, nil
	})
}

// YieldReference identifies one accrual of a user at a price
func YieldReference(userId string, sharePrice decimal.Decimal) string {
	return fmt.Sprintf("yield:%s:%s", userId, sharePrice.String())
}

func (l *Ledger) mutate(ctx context.Context, op, userId string, plan planner) (*models.Balance, *models.LedgerEntry, error) {
	start := time.Now()
	if userId == "" {
		return nil, nil, invalidRequest("user id is required")
	}

	var out outcome
	err := l.withRetry(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = l.mutateOnce(ctx, userId, plan)
		return err
	})
	l.metrics.ObserveMutation(op, outcomeLabel(err, out.changed), time.Since(start))
	if err != nil {
		return nil, nil, err
	}

	if out.changed {
		l.publishBalance(ctx, out.balance)
	}
	return out.balance, out.entry, nil
}

func (l *Ledger) mutateOnce(ctx context.Context, userId string, planFn planner) (outcome, error) {
	tx, err := l.store.BeginTx(ctx, l.txOptions())
	if err != nil {
		return outcome{}, err
	}
	defer l.rollback(ctx, tx)

	current, err := tx.LockBalance(ctx, userId)
	if err != nil {
		return outcome{}, err
	}

	p, err := planFn(*current)
	if err != nil {
		return outcome{}, err
	}
	if err := validateDelta(p.delta); err != nil {
		return outcome{}, err
	}

	// Resolve the entry before touching the balance so replays exit early
	var (
		entry    *models.LedgerEntry
		existing bool
	)
	switch {
	case p.ref.Draft != nil:
		entry, existing, err = l.resolveDraft(ctx, tx, userId, *p.ref.Draft)
	default:
		entry, err = l.resolvePending(ctx, tx, userId, p.ref.EntryId)
		existing = true
		if err == nil && entry.Status == models.EntryStatusPending {
			applyConfirmationFields(entry, p.ref.Effect)
		}
	}
	if err != nil {
		return outcome{}, err
	}
	if entry.Status == models.EntryStatusConfirmed {
		l.logger.Info("Mutation already applied",
			zap.String("user_id", userId),
			zap.String("entry_id", entry.Id),
			zap.String("external_reference", entry.ExternalReference))
		return outcome{balance: current, entry: entry}, nil
	}

	if p.guard != nil {
		if err := p.guard(*current); err != nil {
			return outcome{}, err
		}
	}
	if p.shares != nil {
		entry.Shares = *p.shares
	}

	if err := validatePairing(entry.Type, entry.Amount, p.delta); err != nil {
		return outcome{}, err
	}

	candidate := applyDelta(*current, p.delta)
	if violated := checkInvariants(*current, candidate); violated != "" {
		return outcome{}, l.invariantViolation(userId, violated, *current, candidate, p.delta)
	}

	now := l.clock.Now()
	candidate.UpdatedAt = now
	if err := tx.UpdateBalance(ctx, &candidate); err != nil {
		return outcome{}, err
	}

	entry.Status = models.EntryStatusConfirmed
	entry.ConfirmedAt = &now
	entry.ProcessedAt = &now
	entry.UpdatedAt = now
	if existing {
		err = tx.UpdateEntry(ctx, entry)
	} else {
		err = tx.InsertEntry(ctx, entry)
	}
	if err != nil {
		return outcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return outcome{}, err
	}

	l.logger.Info("Balance mutation committed",
		zap.String("user_id", userId),
		zap.String("entry_id", entry.Id),
		zap.String("entry_type", string(entry.Type)),
		zap.String("amount", entry.Amount.String()),
		zap.String("total_balance", candidate.TotalBalance.String()),
		zap.String("available_balance", candidate.AvailableBalance.String()),
		zap.Int64("version", candidate.Version))
	return outcome{balance: &candidate, entry: entry, changed: true}, nil
}

// resolveDraft turns a draft into a new entry, or into the stored entry when
// its external reference was already recorded by an identical request.
func (l *Ledger) resolveDraft(ctx context.Context, tx store.LedgerTx, userId string, draft models.EntryDraft) (*models.LedgerEntry, bool, error) {
	if draft.ExternalReference != "" {
		stored, err := tx.GetEntryByReference(ctx, draft.ExternalReference)
		switch {
		case err == nil:
			if !sameRequest(stored, userId, draft) {
				return nil, false, fmt.Errorf("%w: %s belongs to entry %s", store.ErrDuplicateReference, draft.ExternalReference, stored.Id)
			}
			switch stored.Status {
			case models.EntryStatusPending:
				applyConfirmationFields(stored, draft.Effect)
				stored.Metadata = mergeMetadata(stored.Metadata, draft.Metadata)
				return stored, true, nil
			case models.EntryStatusConfirmed:
				return stored, true, nil
			}
			return nil, false, &InvalidTransitionError{
				EntryId: stored.Id,
				From:    stored.Status,
				To:      models.EntryStatusConfirmed,
			}
		case !errors.Is(err, store.ErrEntryNotFound):
			return nil, false, err
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
	applyConfirmationFields(e, draft.Effect)
	return e, false, nil
}

func (l *Ledger) resolvePending(ctx context.Context, tx store.LedgerTx, userId, entryId string) (*models.LedgerEntry, error) {
	e, err := tx.LockEntry(ctx, entryId)
	if err != nil {
		return nil, err
	}
	if e.UserId != userId {
		return nil, invalidRequest("entry %s does not belong to user %s", entryId, userId)
	}
	switch e.Status {
	case models.EntryStatusPending, models.EntryStatusConfirmed:
		return e, nil
	}
	return nil, &InvalidTransitionError{
		EntryId: e.Id,
		From:    e.Status,
		To:      models.EntryStatusConfirmed,
		Reason:  "only pending entries can be confirmed",
	}
}

func sameRequest(stored *models.LedgerEntry, userId string, draft models.EntryDraft) bool {
	return stored.UserId == userId && stored.Type == draft.Type && stored.Amount.Equal(draft.Amount)
}

func (l *Ledger) invariantViolation(userId string, violated Invariant, current, candidate models.Balance, delta models.BalanceDelta) error {
	l.metrics.IncInvariantViolation(violated)
	l.logger.Error("Balance invariant violated, mutation rejected",
		zap.String("user_id", userId),
		zap.String("invariant", string(violated)),
		zap.String("total_balance", candidate.TotalBalance.String()),
		zap.String("available_balance", candidate.AvailableBalance.String()),
		zap.String("locked_balance", candidate.LockedBalance.String()),
		zap.String("total_shares", candidate.TotalShares.String()),
		zap.String("share_price", candidate.SharePrice.String()),
		zap.String("total_yield_earned", candidate.TotalYieldEarned.String()),
		zap.String("current_total_balance", current.TotalBalance.String()),
		zap.String("current_available_balance", current.AvailableBalance.String()),
		zap.String("delta_total", delta.TotalDelta().String()),
		zap.String("delta_available", delta.Available.String()),
		zap.String("delta_locked", delta.Locked.String()),
		zap.String("delta_shares", delta.Shares.String()))
	return &InvariantViolationError{
		UserId:    userId,
		Invariant: violated,
		Current:   current,
		Candidate: candidate,
	}
}

func (l *Ledger) rollback(ctx context.Context, tx store.LedgerTx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		l.logger.Warn("Failed to rollback ledger transaction", zap.Error(err))
	}
}

func outcomeLabel(err error, changed bool) string {
	switch {
	case err == nil && changed:
		return "applied"
	case err == nil:
		return "replayed"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrNothingToAccrue):
		return "nothing_to_accrue"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, store.ErrLockTimeout):
		return "lock_timeout"
	case IsClientError(err):
		return "rejected"
	}
	return "error"
}
