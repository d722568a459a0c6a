package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, account_number, balance, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts the account inside tx. ON CONFLICT keeps tx usable when the
// candidate number is taken, so the allocator can retry in the same unit.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	query := `INSERT INTO accounts (user_id, account_number, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_number) DO NOTHING
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		a.UserID, a.AccountNumber, a.Balance, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAccountNumberTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account without locking.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByUserID fetches the account owned by userID.
func (r *AccountRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, userID), "get account by user")
}

// GetByAccountNumber fetches an account by its public number.
func (r *AccountRepo) GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, number), "get account by number")
}

// GetByIDForUpdate reads the row with FOR UPDATE. Must be called within a transaction;
// the lock is released at commit or rollback.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a := &domain.Account{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, lockError("lock account", err)
	}
	return a, nil
}

// UpdateBalance writes the new balance and bumps updated_at.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, balance, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %d", id)
	}
	return nil
}

func scanAccount(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.UserID, &a.AccountNumber, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
