package store

import (
	"context"
	"errors"
	"time"

	"savings-ledger-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrUserNotFound       = errors.New("no balance row for user")
	ErrUserExists         = errors.New("user already exists")
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrDuplicateReference = errors.New("duplicate external reference")
	ErrLockTimeout        = errors.New("row lock not acquired within timeout")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// TxOptions controls a single store transaction.
type TxOptions struct {
	// LockTimeout bounds how long row lock acquisition may block.
	LockTimeout time.Duration
}

// LedgerTx is a multi-statement atomic unit of work. Every method must be called
// with the context that began the transaction.
type LedgerTx interface {
	// LockBalance reads the user's balance row under an exclusive lock.
	// Returns ErrUserNotFound when no row exists and ErrLockTimeout on contention.
	LockBalance(ctx context.Context, userId string) (*models.Balance, error)
	// UpdateBalance writes every mutable field of b and bumps its version.
	UpdateBalance(ctx context.Context, b *models.Balance) error

	InsertEntry(ctx context.Context, e *models.LedgerEntry) error
	// LockEntry reads an entry under an exclusive lock.
	LockEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error)
	GetEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error)
	UpdateEntry(ctx context.Context, e *models.LedgerEntry) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LedgerStore defines the contract that every backend (SQLite, PostgreSQL) must satisfy.
type LedgerStore interface {
	// --- Transactions ---
	BeginTx(ctx context.Context, opts TxOptions) (LedgerTx, error)

	// --- Accounts ---
	CreateAccount(ctx context.Context, userId, name, email string) (*models.User, *models.Balance, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// --- Reads ---
	GetBalance(ctx context.Context, userId string) (*models.Balance, error)
	// ListBalancesWithShares pages through balances holding shares, ordered by user id.
	ListBalancesWithShares(ctx context.Context, afterUserId string, limit int) ([]models.Balance, error)
	GetEntry(ctx context.Context, entryId string) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, userId string, filter models.EntryFilter) ([]models.LedgerEntry, error)
	// SumConfirmedEntries returns the unsigned sum of confirmed entry amounts per
	// type for a user. EntryTotals.Net applies each type's sign.
	SumConfirmedEntries(ctx context.Context, userId string) (models.EntryTotals, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
