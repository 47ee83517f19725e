package ledger

import (
	"context"
	"fmt"

	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Credit adds amount to the user's available balance and issues shares for it
// at the share price read under the row lock. ref names a draft or a pending
// entry, which records the shares actually issued.
func (l *Ledger) Credit(ctx context.Context, userId string, amount decimal.Decimal, ref models.EntryRef) (*models.Balance, *models.LedgerEntry, error) {
	if err := validateShareMovement(amount, ref); err != nil {
		return nil, nil, err
	}

	return l.mutate(ctx, "credit", userId, func(current models.Balance) (plan, error) {
		shares := sharesAt(amount, current.SharePrice)
		return plan{
			delta:  models.BalanceDelta{Available: amount, Shares: shares},
			ref:    ref,
			shares: &shares,
		}, nil
	})
}

// Debit removes amount from the user's available balance and burns the
// matching shares at the locked share price. A debit that empties the balance
// burns every remaining share. Debits above the available balance fail with
// ErrInsufficientFunds.
func (l *Ledger) Debit(ctx context.Context, userId string, amount decimal.Decimal, ref models.EntryRef) (*models.Balance, *models.LedgerEntry, error) {
	if err := validateShareMovement(amount, ref); err != nil {
		return nil, nil, err
	}

	return l.mutate(ctx, "debit", userId, func(current models.Balance) (plan, error) {
		shares := burnedShares(current, amount)
		return plan{
			delta:  models.BalanceDelta{Available: amount.Neg(), Shares: shares.Neg()},
			ref:    ref,
			shares: &shares,
			guard: func(current models.Balance) error {
				if current.AvailableBalance.LessThan(amount) {
					return fmt.Errorf("%w: user %s has %s available, debit of %s",
						ErrInsufficientFunds, userId, current.AvailableBalance, amount)
				}
				return nil
			},
		}, nil
	})
}

func validateShareMovement(amount decimal.Decimal, ref models.EntryRef) error {
	if !amount.IsPositive() {
		return invalidRequest("amount must be positive, got %s", amount)
	}
	if !atScale(amount) {
		return invalidRequest("amount %s exceeds %d decimal places", amount, AssetScale)
	}
	if (ref.Draft == nil) == (ref.EntryId == "") {
		return invalidRequest("exactly one of entry draft or entry id is required")
	}
	if ref.Draft != nil {
		return validateDraft(*ref.Draft)
	}
	return nil
}

// sharesAt converts amount into shares at price, truncated to the asset scale.
// A balance that never accrued has no price yet and trades at par.
func sharesAt(amount, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return amount.Truncate(AssetScale)
	}
	return amount.Div(price).Truncate(AssetScale)
}

func burnedShares(current models.Balance, amount decimal.Decimal) decimal.Decimal {
	if !current.TotalBalance.GreaterThan(amount) {
		return current.TotalShares
	}
	return decimal.Min(sharesAt(amount, current.SharePrice), current.TotalShares)
}
