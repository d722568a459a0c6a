package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, transaction_type, sender_id, receiver_id, amount, status, description, created_at`

// TransactionRepo implements ports.TransactionRepository. It has no update
// path: rows are written once with their terminal status.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a transaction within a database transaction and assigns its ID.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (transaction_type, sender_id, receiver_id, amount, status, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		t.Type, t.SenderID, t.ReceiverID, t.Amount, t.Status, t.Description, t.Timestamp,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches one transaction.
func (r *TransactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t := &domain.Transaction{}
	err := scanTransaction(r.pool.QueryRow(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListByAccount returns the newest transactions touching accountID.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		var t domain.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row, t *domain.Transaction) error {
	return row.Scan(
		&t.ID, &t.Type, &t.SenderID, &t.ReceiverID,
		&t.Amount, &t.Status, &t.Description, &t.Timestamp,
	)
}
