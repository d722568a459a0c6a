package ports

import (
	"context"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for ledger accounts.
// Methods accepting pgx.Tx run inside the caller's atomic unit.
type AccountRepository interface {
	// Create inserts the account and sets its ID. A clash on account_number
	// returns domain.ErrAccountNumberTaken without aborting tx.
	Create(ctx context.Context, tx pgx.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error)
	// GetByIDForUpdate reads and exclusively locks the account until tx ends.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, balance decimal.Decimal) error
}

// TransactionRepository is append-only: records are never updated.
type TransactionRepository interface {
	// Create inserts the record and sets its ID.
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	// ListByAccount returns records where the account is sender or receiver, newest first.
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)
}

// UserRepository defines persistence for identities and their OTP slot.
type UserRepository interface {
	// Create inserts the user. A clash on email returns domain.ErrDuplicateEmail.
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// SetOTP overwrites any outstanding code.
	SetOTP(ctx context.Context, id uuid.UUID, hash string, issuedAt time.Time) error
	// ConsumeOTP clears the slot only if it still holds expectedHash.
	ConsumeOTP(ctx context.Context, id uuid.UUID, expectedHash string) (bool, error)
	// ConsumeOTPAndSetPassword clears the slot and stores the new password hash in
	// one step, only if the slot still holds expectedHash.
	ConsumeOTPAndSetPassword(ctx context.Context, id uuid.UUID, expectedHash, passwordHash string) (bool, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// IdempotencyCache stores replayable responses keyed by client-supplied idempotency keys.
type IdempotencyCache interface {
	// Reserve claims key for an in-flight request. It reports false when the key
	// is already reserved or holds a stored response.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns nil, nil when key is unknown.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
