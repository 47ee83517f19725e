package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/database"
	"savings-ledger-go/internal/ledger"
	"savings-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestService(t *testing.T) *LedgerService {
	t.Helper()
	st, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(st.Close)

	cfg := ledger.DefaultConfig()
	cfg.RetryBase = time.Millisecond
	l := ledger.New(st, cache.NewMemory(), cfg, ledger.WithLogger(zap.NewNop()))
	return NewLedgerService(st, l)
}

func onboard(t *testing.T, s *LedgerService, userId string) {
	t.Helper()
	_, err := s.OnboardUser(context.Background(), userId, "User "+userId, userId+"@example.com")
	require.NoError(t, err)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestObserveThenConfirmDeposit(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "alice")

	observed, err := s.ObserveDeposit(ctx, "alice", dec("250"), "0xdeposit1")
	require.NoError(t, err)
	require.True(t, observed.Success, observed.Error)
	assert.Equal(t, "pending", observed.Status)

	before, err := s.GetUserBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, before.Total.IsZero())

	height := int64(1200)
	confirmed, err := s.ConfirmDeposit(ctx, observed.EntryId, models.EffectFields{BlockHeight: &height})
	require.NoError(t, err)
	require.True(t, confirmed.Success, confirmed.Error)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.True(t, confirmed.NewBalance.Equal(dec("250")))

	after, err := s.GetUserBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, after.Available.Equal(dec("250")))
	assert.True(t, after.Shares.Equal(dec("250")))

	// a second confirmation is a replay
	again, err := s.ConfirmDeposit(ctx, observed.EntryId, models.EffectFields{})
	require.NoError(t, err)
	require.True(t, again.Success, again.Error)
	assert.True(t, again.NewBalance.Equal(dec("250")))
}

func TestProcessDepositIsIdempotentPerTxHash(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "bob")

	for range 2 {
		res, err := s.ProcessDeposit(ctx, "bob", dec("40.5"), "0xabc")
		require.NoError(t, err)
		require.True(t, res.Success, res.Error)
		assert.True(t, res.NewBalance.Equal(dec("40.5")))
	}

	conflicting, err := s.ProcessDeposit(ctx, "bob", dec("41"), "0xabc")
	require.NoError(t, err)
	assert.False(t, conflicting.Success)
}

func TestDepositValidation(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		userId string
		amount decimal.Decimal
		txHash string
	}{
		{"missing user", "", dec("1"), "0x1"},
		{"zero amount", "u", decimal.Zero, "0x1"},
		{"negative amount", "u", dec("-1"), "0x1"},
		{"missing hash", "u", dec("1"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.ProcessDeposit(ctx, tc.userId, tc.amount, tc.txHash)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, "invalid deposit parameters", res.Error)
		})
	}

	unknown, err := s.ProcessDeposit(ctx, "ghost", dec("1"), "0x2")
	require.NoError(t, err)
	assert.False(t, unknown.Success)
}

func TestWithdrawalLifecycle(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "carol")

	_, err := s.ProcessDeposit(ctx, "carol", dec("100"), "0xfund")
	require.NoError(t, err)

	req, err := s.RequestWithdrawal(ctx, "carol", dec("30"), "req-1")
	require.NoError(t, err)
	require.True(t, req.Success, req.Error)
	assert.Equal(t, "pending", req.Status)

	replay, err := s.RequestWithdrawal(ctx, "carol", dec("30"), "req-1")
	require.NoError(t, err)
	require.True(t, replay.Success, replay.Error)
	assert.Equal(t, req.EntryId, replay.EntryId)

	res, err := s.ConfirmWithdrawal(ctx, req.EntryId, models.EffectFields{ExternalReference: "0xout"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.True(t, res.NewBalance.Equal(dec("70")))

	bal, err := s.GetUserBalance(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, bal.Available.Equal(dec("70")))
	assert.True(t, bal.Shares.Equal(dec("70")))

	// confirmed withdrawals cannot be cancelled
	cancelled, err := s.CancelWithdrawal(ctx, req.EntryId)
	require.NoError(t, err)
	assert.False(t, cancelled.Success)

	recon, err := s.ReconcileUser(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, recon.Balanced())
}

func TestSharesFollowPriceAtConfirmation(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "gina")

	_, err := s.ProcessDeposit(ctx, "gina", dec("100"), "0xfund")
	require.NoError(t, err)
	observed, err := s.ObserveDeposit(ctx, "gina", dec("110"), "0xslow")
	require.NoError(t, err)
	require.True(t, observed.Success, observed.Error)

	_, _, err = s.ledger.AccrueYield(ctx, "gina", dec("1.1"))
	require.NoError(t, err)

	confirmed, err := s.ConfirmDeposit(ctx, observed.EntryId, models.EffectFields{})
	require.NoError(t, err)
	require.True(t, confirmed.Success, confirmed.Error)

	bal, err := s.GetUserBalance(ctx, "gina")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(dec("220")))
	assert.True(t, bal.Shares.Equal(dec("200")))
	assert.True(t, bal.Shares.Mul(bal.SharePrice).Equal(bal.Total))

	req, err := s.RequestWithdrawal(ctx, "gina", dec("220"), "all")
	require.NoError(t, err)
	require.True(t, req.Success, req.Error)
	out, err := s.ConfirmWithdrawal(ctx, req.EntryId, models.EffectFields{ExternalReference: "0xall"})
	require.NoError(t, err)
	require.True(t, out.Success, out.Error)

	bal, err = s.GetUserBalance(ctx, "gina")
	require.NoError(t, err)
	assert.True(t, bal.Total.IsZero())
	assert.True(t, bal.Shares.IsZero(), "a full withdrawal burns every share")

	_, _, err = s.ledger.AccrueYield(ctx, "gina", dec("1.2"))
	assert.ErrorIs(t, err, ledger.ErrNothingToAccrue)

	recon, err := s.ReconcileUser(ctx, "gina")
	require.NoError(t, err)
	assert.True(t, recon.Balanced())
}

func TestCompetingWithdrawalRequests(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "hank")
	_, err := s.ProcessDeposit(ctx, "hank", dec("50"), "0xfund")
	require.NoError(t, err)

	first, err := s.RequestWithdrawal(ctx, "hank", dec("40"), "")
	require.NoError(t, err)
	require.True(t, first.Success, first.Error)
	second, err := s.RequestWithdrawal(ctx, "hank", dec("40"), "")
	require.NoError(t, err)
	require.True(t, second.Success, second.Error, "requests do not reserve funds")

	ok, err := s.ConfirmWithdrawal(ctx, first.EntryId, models.EffectFields{})
	require.NoError(t, err)
	require.True(t, ok.Success, ok.Error)

	late, err := s.ConfirmWithdrawal(ctx, second.EntryId, models.EffectFields{})
	require.NoError(t, err)
	assert.False(t, late.Success)
	assert.Contains(t, late.Error, "insufficient available balance")

	history, err := s.GetEntryHistory(ctx, "hank", models.EntryFilter{Statuses: []models.EntryStatus{models.EntryStatusPending}})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, second.EntryId, history[0].Id)

	failed, err := s.FailWithdrawal(ctx, second.EntryId, "insufficient funds at settlement")
	require.NoError(t, err)
	require.True(t, failed.Success, failed.Error)

	bal, err := s.GetUserBalance(ctx, "hank")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(dec("10")))
}

func TestWithdrawalRequestRejectsOverdraft(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "dave")
	_, err := s.ProcessDeposit(ctx, "dave", dec("10"), "0xfund")
	require.NoError(t, err)

	res, err := s.RequestWithdrawal(ctx, "dave", dec("10.000001"), "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "insufficient available balance")

	direct, err := s.ProcessWithdrawal(ctx, "dave", dec("11"), "0xout")
	require.NoError(t, err)
	assert.False(t, direct.Success)

	bal, err := s.GetUserBalance(ctx, "dave")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(dec("10")))
}

func TestFailAndCancelWithdrawal(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "erin")
	_, err := s.ProcessDeposit(ctx, "erin", dec("50"), "0xfund")
	require.NoError(t, err)

	first, err := s.RequestWithdrawal(ctx, "erin", dec("20"), "")
	require.NoError(t, err)
	second, err := s.RequestWithdrawal(ctx, "erin", dec("5"), "")
	require.NoError(t, err)

	noReason, err := s.FailWithdrawal(ctx, first.EntryId, "")
	require.NoError(t, err)
	assert.False(t, noReason.Success)

	failed, err := s.FailWithdrawal(ctx, first.EntryId, "broadcast rejected")
	require.NoError(t, err)
	require.True(t, failed.Success, failed.Error)
	assert.Equal(t, "failed", failed.Status)

	cancelled, err := s.CancelWithdrawal(ctx, second.EntryId)
	require.NoError(t, err)
	require.True(t, cancelled.Success, cancelled.Error)
	assert.Equal(t, "cancelled", cancelled.Status)

	// a failed withdrawal cannot be confirmed later
	late, err := s.ConfirmWithdrawal(ctx, first.EntryId, models.EffectFields{})
	require.NoError(t, err)
	assert.False(t, late.Success)

	history, err := s.GetEntryHistory(ctx, "erin", models.EntryFilter{Types: []models.EntryType{models.EntryTypeWithdraw}})
	require.NoError(t, err)
	require.Len(t, history, 2)
	statuses := []string{history[0].Status, history[1].Status}
	assert.ElementsMatch(t, []string{"failed", "cancelled"}, statuses)

	bal, err := s.GetUserBalance(ctx, "erin")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(dec("50")))
}

func TestConfirmRejectsWrongEntryType(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "frank")

	observed, err := s.ObserveDeposit(ctx, "frank", dec("5"), "0xin")
	require.NoError(t, err)

	res, err := s.ConfirmWithdrawal(ctx, observed.EntryId, models.EffectFields{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not a withdrawal")
}

func TestReferralBonusPaidOnce(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()
	onboard(t, s, "gina")

	for range 2 {
		res, err := s.CreditReferralBonus(ctx, "gina", dec("5"), "ref-42")
		require.NoError(t, err)
		require.True(t, res.Success, res.Error)
	}

	bal, err := s.GetUserBalance(ctx, "gina")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(dec("5")))

	history, err := s.GetEntryHistory(ctx, "gina", models.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "referral_bonus", history[0].Type)
	assert.Equal(t, "referral:ref-42", history[0].ExternalReference)
}

func TestOnboardUser(t *testing.T) {
	s := setupTestService(t)
	ctx := context.Background()

	user, err := s.OnboardUser(ctx, "", "Hana", "hana@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.Id)

	_, err = s.OnboardUser(ctx, "", "Hana Again", "hana@example.com")
	assert.Error(t, err)

	_, err = s.OnboardUser(ctx, "", "No Email", "nope")
	assert.Error(t, err)

	require.NoError(t, s.HealthCheck(ctx))
}
