package ledger

import (
	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// AssetScale is the number of decimal places of the smallest transferable unit.
const AssetScale = 6

// InvariantEpsilon is the tolerance between total and available+locked. It sits
// below one base unit (1e-6) so it can never hide a real accounting error.
var InvariantEpsilon = decimal.New(1, -9)

type Invariant string

const (
	InvariantTotalMatchesParts     Invariant = "total_equals_available_plus_locked"
	InvariantTotalNonNegative      Invariant = "total_balance_non_negative"
	InvariantAvailableNonNegative  Invariant = "available_balance_non_negative"
	InvariantLockedNonNegative     Invariant = "locked_balance_non_negative"
	InvariantSharesNonNegative     Invariant = "total_shares_non_negative"
	InvariantSharePriceNonNegative Invariant = "share_price_non_negative"
	InvariantYieldMonotonic        Invariant = "yield_earned_monotonic"
)

// applyDelta returns the candidate balance; current is left untouched.
func applyDelta(current models.Balance, d models.BalanceDelta) models.Balance {
	next := current
	next.TotalBalance = current.TotalBalance.Add(d.TotalDelta())
	next.AvailableBalance = current.AvailableBalance.Add(d.Available)
	next.LockedBalance = current.LockedBalance.Add(d.Locked)
	next.TotalShares = current.TotalShares.Add(d.Shares)
	if d.SharePrice != nil {
		next.SharePrice = *d.SharePrice
	}
	next.TotalYieldEarned = current.TotalYieldEarned.Add(d.YieldEarned)
	return next
}

// checkInvariants returns the first invariant the candidate breaks, or "".
func checkInvariants(current, candidate models.Balance) Invariant {
	switch {
	case candidate.AvailableBalance.IsNegative():
		return InvariantAvailableNonNegative
	case candidate.LockedBalance.IsNegative():
		return InvariantLockedNonNegative
	case candidate.TotalBalance.IsNegative():
		return InvariantTotalNonNegative
	case candidate.TotalShares.IsNegative():
		return InvariantSharesNonNegative
	case candidate.SharePrice.IsNegative():
		return InvariantSharePriceNonNegative
	case candidate.TotalYieldEarned.LessThan(current.TotalYieldEarned):
		return InvariantYieldMonotonic
	}

	parts := candidate.AvailableBalance.Add(candidate.LockedBalance)
	if candidate.TotalBalance.Sub(parts).Abs().GreaterThan(InvariantEpsilon) {
		return InvariantTotalMatchesParts
	}
	return ""
}

func atScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AssetScale))
}

// validateDelta rejects deltas no well-formed caller could produce.
func validateDelta(d models.BalanceDelta) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"total", d.Total},
		{"available", d.Available},
		{"locked", d.Locked},
		{"yield_earned", d.YieldEarned},
	}
	for _, f := range fields {
		if !atScale(f.value) {
			return invalidRequest("delta %s %s exceeds %d decimal places", f.name, f.value, AssetScale)
		}
	}
	return nil
}

func validateDraft(draft models.EntryDraft) error {
	if !draft.Type.Valid() {
		return invalidRequest("unknown entry type %q", draft.Type)
	}
	if draft.Amount.IsNegative() {
		return invalidRequest("entry amount must be non-negative, got %s", draft.Amount)
	}
	if !atScale(draft.Amount) {
		return invalidRequest("entry amount %s exceeds %d decimal places", draft.Amount, AssetScale)
	}
	if draft.Shares.IsNegative() {
		return invalidRequest("entry shares must be non-negative, got %s", draft.Shares)
	}
	return nil
}

// validatePairing requires the delta to move total_balance by exactly the
// signed entry amount, so confirmed entries always reconcile with the balance.
func validatePairing(typ models.EntryType, amount decimal.Decimal, d models.BalanceDelta) error {
	if !typ.CarriesBalanceEffect() {
		return nil
	}
	want := amount.Mul(decimal.NewFromInt(int64(typ.Sign())))
	if !d.TotalDelta().Equal(want) {
		return invalidRequest("%s of %s must move total balance by %s, delta moves it by %s",
			typ, amount, want, d.TotalDelta())
	}
	return nil
}
