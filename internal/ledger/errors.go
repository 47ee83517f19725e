package ledger

import (
	"errors"
	"fmt"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"
)

var (
	ErrInvariantViolation     = errors.New("balance invariant violated")
	ErrInvalidStateTransition = errors.New("invalid entry state transition")
	ErrInvalidRequest         = errors.New("invalid ledger request")
	ErrNothingToAccrue        = errors.New("no yield to accrue")
	ErrInsufficientFunds      = errors.New("insufficient available balance")
)

// InvariantViolationError carries the rejected candidate balance for diagnostics.
type InvariantViolationError struct {
	UserId    string
	Invariant Invariant
	Current   models.Balance
	Candidate models.Balance
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant %s violated for user %s: total=%s available=%s locked=%s shares=%s share_price=%s yield_earned=%s",
		e.Invariant, e.UserId,
		e.Candidate.TotalBalance, e.Candidate.AvailableBalance, e.Candidate.LockedBalance,
		e.Candidate.TotalShares, e.Candidate.SharePrice, e.Candidate.TotalYieldEarned)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

type InvalidTransitionError struct {
	EntryId string
	From    models.EntryStatus
	To      models.EntryStatus
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("entry %s cannot move from %s to %s", e.EntryId, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is transient and the operation may be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrStoreUnavailable) || errors.Is(err, store.ErrLockTimeout)
}

// IsClientError reports whether err stems from the request itself rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrNothingToAccrue) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, store.ErrUserNotFound) ||
		errors.Is(err, store.ErrEntryNotFound) ||
		errors.Is(err, store.ErrDuplicateReference) ||
		errors.Is(err, store.ErrUserExists)
}
