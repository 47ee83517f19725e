package ledger

import (
	"context"
	"testing"

	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShares(t *testing.T, b *models.Balance, shares string) {
	t.Helper()
	require.Truef(t, b.TotalShares.Equal(dec(shares)), "shares: want %s got %s", shares, b.TotalShares)
}

func depositDraft(amount, reference string) models.EntryRef {
	return models.NewEntry(models.EntryDraft{
		Type:              models.EntryTypeDeposit,
		Amount:            dec(amount),
		ExternalReference: reference,
	})
}

func TestCredit_PricesSharesUnderLock(t *testing.T) {
	env := newTestEnv(t, cache.NewMemory())
	_, _, err := env.store.CreateAccount(context.Background(), "alice", "Alice", "alice@example.com")
	require.NoError(t, err)
	ctx := context.Background()

	b, _, err := env.ledger.Credit(ctx, "alice", dec("100"), depositDraft("100", "0xopen"))
	require.NoError(t, err)
	requireShares(t, b, "100")

	// observed at price 1, confirmed after the price moved
	pending, err := env.ledger.CreateEntry(ctx, "alice", models.EntryDraft{
		Type:              models.EntryTypeDeposit,
		Amount:            dec("110"),
		Shares:            dec("110"),
		ExternalReference: "0xlate",
	})
	require.NoError(t, err)

	_, _, err = env.ledger.AccrueYield(ctx, "alice", dec("1.1"))
	require.NoError(t, err)

	b, entry, err := env.ledger.Credit(ctx, "alice", dec("110"), models.ExistingEntry(pending.Id))
	require.NoError(t, err)
	requireBalance(t, b, "220", "220", "0")
	requireShares(t, b, "200")
	assert.True(t, b.TotalShares.Mul(b.SharePrice).Equal(b.TotalBalance), "shares are backed by the balance")
	assert.True(t, entry.Shares.Equal(dec("100")), "entry records the shares actually issued")

	stored, err := env.store.GetEntry(ctx, pending.Id)
	require.NoError(t, err)
	assert.True(t, stored.Shares.Equal(dec("100")))

	b, _, err = env.ledger.Debit(ctx, "alice", dec("220"), models.NewEntry(models.EntryDraft{
		Type:   models.EntryTypeWithdraw,
		Amount: dec("220"),
	}))
	require.NoError(t, err)
	requireBalance(t, b, "0", "0", "0")
	requireShares(t, b, "0")

	_, _, err = env.ledger.AccrueYield(ctx, "alice", dec("1.2"))
	assert.ErrorIs(t, err, ErrNothingToAccrue)
	requireBalance(t, env.storedBalance(t, "alice"), "0", "0", "0")
}

func TestDebit_BurnsSharesAtStoredPrice(t *testing.T) {
	env := newTestEnv(t, nil)
	_, _, err := env.store.CreateAccount(context.Background(), "bob", "Bob", "bob@example.com")
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = env.ledger.Credit(ctx, "bob", dec("100"), depositDraft("100", ""))
	require.NoError(t, err)
	_, _, err = env.ledger.AccrueYield(ctx, "bob", dec("1.25"))
	require.NoError(t, err)

	b, entry, err := env.ledger.Debit(ctx, "bob", dec("50"), models.NewEntry(models.EntryDraft{
		Type:   models.EntryTypeWithdraw,
		Amount: dec("50"),
	}))
	require.NoError(t, err)
	requireBalance(t, b, "75", "75", "0")
	requireShares(t, b, "60")
	assert.True(t, entry.Shares.Equal(dec("40")))
}

func TestDebit_InsufficientFundsIsNotAnInvariantViolation(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	env := newTestEnv(t, nil, WithMetrics(metrics))
	env.openAccount(t, "carol", "30")
	ctx := context.Background()

	pending, err := env.ledger.CreateEntry(ctx, "carol", models.EntryDraft{
		Type:   models.EntryTypeWithdraw,
		Amount: dec("40"),
	})
	require.NoError(t, err)

	_, _, err = env.ledger.Debit(ctx, "carol", dec("40"), models.ExistingEntry(pending.Id))
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NotErrorIs(t, err, ErrInvariantViolation)
	assert.True(t, IsClientError(err))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InvariantViolations.WithLabelValues(string(InvariantAvailableNonNegative))))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Mutations.WithLabelValues("debit", "insufficient_funds")))

	stored, err := env.store.GetEntry(ctx, pending.Id)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPending, stored.Status)
	requireBalance(t, env.storedBalance(t, "carol"), "30", "30", "0")
}

func TestDebit_ReplayOfConfirmedEntrySkipsFundsCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	env.openAccount(t, "dave", "50")
	ctx := context.Background()

	ref := models.NewEntry(models.EntryDraft{
		Type:              models.EntryTypeWithdraw,
		Amount:            dec("50"),
		ExternalReference: "0xout",
	})
	_, first, err := env.ledger.Debit(ctx, "dave", dec("50"), ref)
	require.NoError(t, err)

	b, again, err := env.ledger.Debit(ctx, "dave", dec("50"), ref)
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)
	requireBalance(t, b, "0", "0", "0")
}

func TestShareMovementValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.openAccount(t, "erin", "")
	ctx := context.Background()

	_, _, err := env.ledger.Credit(ctx, "erin", dec("0"), depositDraft("0", ""))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, _, err = env.ledger.Credit(ctx, "erin", dec("1.0000001"), depositDraft("1.0000001", ""))
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, _, err = env.ledger.Debit(ctx, "erin", dec("1"), models.EntryRef{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, _, err = env.ledger.Credit(ctx, "erin", dec("5"), depositDraft("4", ""))
	assert.ErrorIs(t, err, ErrInvalidRequest, "amount and entry must agree")
}

func TestBurnedShares(t *testing.T) {
	b := models.Balance{
		TotalBalance:     dec("10"),
		AvailableBalance: dec("10"),
		TotalShares:      dec("7.333333"),
		SharePrice:       dec("1.363636"),
	}
	assert.True(t, burnedShares(b, dec("10")).Equal(dec("7.333333")), "emptying the balance burns every share")
	assert.True(t, burnedShares(b, dec("5")).LessThanOrEqual(b.TotalShares))
	assert.True(t, sharesAt(dec("3"), decimal.Zero).Equal(dec("3")))
}
