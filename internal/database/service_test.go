package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"savings-ledger-go/internal/models"
	"savings-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestService(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  time.Second,
	}
	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	return service, service.Close
}

func createTestAccount(t *testing.T, service *Service, userId string) *models.Balance {
	t.Helper()
	_, balance, err := service.CreateAccount(context.Background(), userId, "Test "+userId, userId+"@example.com")
	if err != nil {
		t.Fatalf("CreateAccount(%s) failed: %v", userId, err)
	}
	return balance
}

func newTestEntry(userId string, typ models.EntryType, amount string, submitted time.Time) *models.LedgerEntry {
	return &models.LedgerEntry{
		Id:          uuid.New().String(),
		UserId:      userId,
		Type:        typ,
		Status:      models.EntryStatusConfirmed,
		Amount:      decimal.RequireFromString(amount),
		Shares:      decimal.Zero,
		SubmittedAt: submitted,
		UpdatedAt:   submitted,
	}
}

func insertCommitted(t *testing.T, service *Service, entries ...*models.LedgerEntry) {
	t.Helper()
	ctx := context.Background()
	tx, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback(ctx)
	for _, e := range entries {
		if err := tx.InsertEntry(ctx, e); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func TestCreateAccount(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	balance := createTestAccount(t, service, "user1")
	if balance.Version != 1 {
		t.Errorf("Expected version 1, got %d", balance.Version)
	}
	if !balance.TotalBalance.IsZero() || !balance.AvailableBalance.IsZero() || !balance.TotalShares.IsZero() {
		t.Errorf("Expected zeroed balance, got %+v", balance)
	}

	user, err := service.GetUserByEmail(ctx, "user1@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.Id != "user1" {
		t.Errorf("Expected user1, got %s", user.Id)
	}

	_, _, err = service.CreateAccount(ctx, "user2", "Other", "user1@example.com")
	if !errors.Is(err, store.ErrUserExists) {
		t.Errorf("Expected ErrUserExists for duplicate email, got %v", err)
	}

	users, err := service.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected 1 user after failed duplicate, got %d", len(users))
	}
}

func TestGetBalance_UnknownUser(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	_, err := service.GetBalance(context.Background(), "ghost")
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestLedgerTx_CommitPersistsBalanceAndEntry(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	createTestAccount(t, service, "user1")

	tx, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}

	b, err := tx.LockBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("LockBalance failed: %v", err)
	}
	b.TotalBalance = decimal.NewFromInt(100)
	b.AvailableBalance = decimal.NewFromInt(100)
	b.UpdatedAt = time.Now().UTC()
	if err := tx.UpdateBalance(ctx, b); err != nil {
		t.Fatalf("UpdateBalance failed: %v", err)
	}
	if b.Version != 2 {
		t.Errorf("Expected in-memory version bumped to 2, got %d", b.Version)
	}

	height := int64(1200)
	fee := decimal.RequireFromString("0.000021")
	entry := newTestEntry("user1", models.EntryTypeDeposit, "100", time.Now().UTC())
	entry.ExternalReference = "0xabc"
	entry.BlockHeight = &height
	entry.GasFee = &fee
	entry.Metadata = map[string]string{"chain": "base"}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Errorf("Rollback after commit should be a no-op, got %v", err)
	}

	stored, err := service.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !stored.TotalBalance.Equal(decimal.NewFromInt(100)) || stored.Version != 2 {
		t.Errorf("Expected total 100 at version 2, got %s at %d", stored.TotalBalance, stored.Version)
	}

	got, err := service.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.ExternalReference != "0xabc" || got.Metadata["chain"] != "base" {
		t.Errorf("Entry fields not persisted: %+v", got)
	}
	if got.BlockHeight == nil || *got.BlockHeight != height {
		t.Errorf("Expected block height %d, got %v", height, got.BlockHeight)
	}
	if got.GasFee == nil || !got.GasFee.Equal(fee) {
		t.Errorf("Expected gas fee %s, got %v", fee, got.GasFee)
	}
	if got.ConfirmedAt != nil {
		t.Errorf("Expected nil confirmed_at, got %v", got.ConfirmedAt)
	}
}

func TestLedgerTx_RollbackDiscardsWrites(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	createTestAccount(t, service, "user1")

	tx, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	b, err := tx.LockBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("LockBalance failed: %v", err)
	}
	b.TotalBalance = decimal.NewFromInt(5)
	b.AvailableBalance = decimal.NewFromInt(5)
	if err := tx.UpdateBalance(ctx, b); err != nil {
		t.Fatalf("UpdateBalance failed: %v", err)
	}
	entry := newTestEntry("user1", models.EntryTypeDeposit, "5", time.Now().UTC())
	if err := tx.InsertEntry(ctx, entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	stored, err := service.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !stored.TotalBalance.IsZero() || stored.Version != 1 {
		t.Errorf("Expected untouched balance, got %s at version %d", stored.TotalBalance, stored.Version)
	}
	if _, err := service.GetEntry(ctx, entry.Id); !errors.Is(err, store.ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound after rollback, got %v", err)
	}
}

func TestLedgerTx_DuplicateReference(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	createTestAccount(t, service, "user1")

	first := newTestEntry("user1", models.EntryTypeDeposit, "10", time.Now().UTC())
	first.ExternalReference = "0xdup"
	insertCommitted(t, service, first)

	tx, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback(ctx)

	second := newTestEntry("user1", models.EntryTypeDeposit, "10", time.Now().UTC())
	second.ExternalReference = "0xdup"
	if err := tx.InsertEntry(ctx, second); !errors.Is(err, store.ErrDuplicateReference) {
		t.Fatalf("Expected ErrDuplicateReference, got %v", err)
	}

	existing, err := tx.GetEntryByReference(ctx, "0xdup")
	if err != nil {
		t.Fatalf("GetEntryByReference failed: %v", err)
	}
	if existing.Id != first.Id {
		t.Errorf("Expected entry %s, got %s", first.Id, existing.Id)
	}
}

func TestLedgerTx_UnreferencedEntriesDoNotCollide(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	createTestAccount(t, service, "user1")

	now := time.Now().UTC()
	insertCommitted(t, service,
		newTestEntry("user1", models.EntryTypeDeposit, "1", now),
		newTestEntry("user1", models.EntryTypeDeposit, "2", now.Add(time.Millisecond)))
}

func TestLedgerTx_UpdateEntry(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	createTestAccount(t, service, "user1")

	entry := newTestEntry("user1", models.EntryTypeWithdraw, "40", time.Now().UTC())
	entry.Status = models.EntryStatusPending
	insertCommitted(t, service, entry)

	tx, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	locked, err := tx.LockEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("LockEntry failed: %v", err)
	}
	processed := time.Now().UTC()
	locked.Status = models.EntryStatusFailed
	locked.ErrorMessage = "rpc rejected"
	locked.ProcessedAt = &processed
	locked.UpdatedAt = processed
	if err := tx.UpdateEntry(ctx, locked); err != nil {
		t.Fatalf("UpdateEntry failed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got, err := service.GetEntry(ctx, entry.Id)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if got.Status != models.EntryStatusFailed || got.ErrorMessage != "rpc rejected" || got.ProcessedAt == nil {
		t.Errorf("Unexpected entry after update: %+v", got)
	}
}

func TestBeginTx_LockTimeout(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	createTestAccount(t, service, "user1")

	holder, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer holder.Rollback(ctx)
	if _, err := holder.LockBalance(ctx, "user1"); err != nil {
		t.Fatalf("LockBalance failed: %v", err)
	}

	start := time.Now()
	_, err = service.BeginTx(ctx, store.TxOptions{LockTimeout: 100 * time.Millisecond})
	if !errors.Is(err, store.ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout while another writer holds the lock, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Lock wait not bounded by timeout: %v", elapsed)
	}

	// Readers are not blocked by the writer in WAL mode
	if _, err := service.GetBalance(ctx, "user1"); err != nil {
		t.Errorf("GetBalance should not block on writer: %v", err)
	}
}

func TestBeginTx_ContextDeadlineShortensWait(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	createTestAccount(t, service, "user1")

	holder, err := service.BeginTx(context.Background(), store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer holder.Rollback(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = service.BeginTx(ctx, store.TxOptions{LockTimeout: 5 * time.Second})
	if !errors.Is(err, store.ErrLockTimeout) {
		t.Fatalf("Expected ErrLockTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Context deadline ignored: waited %v", elapsed)
	}
}

func TestLockBalance_UnknownUser(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := service.BeginTx(ctx, store.TxOptions{LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.LockBalance(ctx, "ghost"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
