package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"savings-ledger-go/internal/cache"
	"savings-ledger-go/internal/database"
	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stepClock advances by a millisecond on every reading so entries order deterministically
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func testConfig() Config {
	return Config{
		LockTimeout:  2 * time.Second,
		MaxRetries:   3,
		RetryBase:    5 * time.Millisecond,
		CacheTimeout: 200 * time.Millisecond,
		BalanceTTL:   time.Minute,
		EntriesTTL:   time.Minute,
	}
}

func newTestStore(t *testing.T) *database.Service {
	t.Helper()
	svc, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 4,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

type testEnv struct {
	ledger *Ledger
	store  *database.Service
	cache  cache.Cache
}

func newTestEnv(t *testing.T, c cache.Cache, opts ...Option) *testEnv {
	t.Helper()
	svc := newTestStore(t)
	opts = append([]Option{WithClock(newStepClock()), WithLogger(zap.NewNop())}, opts...)
	return &testEnv{
		ledger: New(svc, c, testConfig(), opts...),
		store:  svc,
		cache:  c,
	}
}

// openAccount onboards a user and funds it with an opening deposit
func (e *testEnv) openAccount(t *testing.T, userId, opening string) {
	t.Helper()
	_, _, err := e.store.CreateAccount(context.Background(), userId, "User "+userId, userId+"@example.com")
	require.NoError(t, err)
	if opening != "" && opening != "0" {
		e.deposit(t, userId, opening)
	}
}

func (e *testEnv) deposit(t *testing.T, userId, amount string) *models.Balance {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	b, _, err := e.ledger.ApplyMutation(context.Background(), userId,
		models.BalanceDelta{Available: amt},
		models.NewEntry(models.EntryDraft{Type: models.EntryTypeDeposit, Amount: amt}))
	require.NoError(t, err)
	return b
}

func (e *testEnv) storedBalance(t *testing.T, userId string) *models.Balance {
	t.Helper()
	b, err := e.store.GetBalance(context.Background(), userId)
	require.NoError(t, err)
	return b
}

func requireBalance(t *testing.T, b *models.Balance, total, available, locked string) {
	t.Helper()
	require.Truef(t, b.TotalBalance.Equal(decimal.RequireFromString(total)), "total: want %s got %s", total, b.TotalBalance)
	require.Truef(t, b.AvailableBalance.Equal(decimal.RequireFromString(available)), "available: want %s got %s", available, b.AvailableBalance)
	require.Truef(t, b.LockedBalance.Equal(decimal.RequireFromString(locked)), "locked: want %s got %s", locked, b.LockedBalance)
}

// faultyStore injects failures around a real store. failBegins < 0 fails every BeginTx.
type faultyStore struct {
	store.LedgerStore

	mu         sync.Mutex
	beginErr   error
	failBegins int
	beginCalls int
	insertErr  error
	commitErr  error
	// hiddenLookups makes that many reference lookups miss, as a request racing
	// an identical one would
	hiddenLookups int
}

func (f *faultyStore) BeginTx(ctx context.Context, opts store.TxOptions) (store.LedgerTx, error) {
	f.mu.Lock()
	f.beginCalls++
	if f.failBegins != 0 {
		if f.failBegins > 0 {
			f.failBegins--
		}
		f.mu.Unlock()
		return nil, f.beginErr
	}
	f.mu.Unlock()

	tx, err := f.LedgerStore.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &faultyTx{LedgerTx: tx, owner: f}, nil
}

func (f *faultyStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beginCalls
}

type faultyTx struct {
	store.LedgerTx
	owner *faultyStore
}

func (t *faultyTx) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	if t.owner.insertErr != nil {
		return t.owner.insertErr
	}
	return t.LedgerTx.InsertEntry(ctx, e)
}

func (t *faultyTx) GetEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	t.owner.mu.Lock()
	if t.owner.hiddenLookups > 0 {
		t.owner.hiddenLookups--
		t.owner.mu.Unlock()
		return nil, store.ErrEntryNotFound
	}
	t.owner.mu.Unlock()
	return t.LedgerTx.GetEntryByReference(ctx, reference)
}

func (t *faultyTx) UpdateEntry(ctx context.Context, e *models.LedgerEntry) error {
	if t.owner.insertErr != nil {
		return t.owner.insertErr
	}
	return t.LedgerTx.UpdateEntry(ctx, e)
}

func (t *faultyTx) Commit(ctx context.Context) error {
	if t.owner.commitErr != nil {
		if err := t.LedgerTx.Rollback(ctx); err != nil {
			return err
		}
		return t.owner.commitErr
	}
	return t.LedgerTx.Commit(ctx)
}
