package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func newTestTransaction() *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Transaction{
		ID:          11,
		Type:        domain.TransactionTypeTransfer,
		SenderID:    int64Ptr(1),
		ReceiverID:  int64Ptr(2),
		Amount:      decimal.RequireFromString("30.00"),
		Status:      domain.TransactionStatusSuccess,
		Description: "rent",
		Timestamp:   now,
	}
}

func txColumns() []string {
	return []string{"id", "transaction_type", "sender_id", "receiver_id", "amount", "status", "description", "created_at"}
}

func txRow(rows *pgxmock.Rows, t *domain.Transaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.Type, t.SenderID, t.ReceiverID,
		t.Amount, t.Status, t.Description, t.Timestamp,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()
	txn.ID = 0

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO transactions .+ RETURNING id").
		WithArgs(txn.Type, txn.SenderID, txn.ReceiverID, txn.Amount,
			txn.Status, txn.Description, txn.Timestamp).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(101)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	require.NoError(t, err)
	assert.Equal(t, int64(101), txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO transactions").
		WillReturnError(errors.New("disk full"))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert transaction")
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRow(pgxmock.NewRows(txColumns()), txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, domain.TransactionTypeTransfer, result.Type)
	assert.Equal(t, int64(1), *result.SenderID)
	assert.Equal(t, int64(2), *result.ReceiverID)
	assert.True(t, txn.Amount.Equal(result.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(int64(999)).
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), 999)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestTransactionRepo_ListByAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	transfer := newTestTransaction()
	deposit := &domain.Transaction{
		ID:         10,
		Type:       domain.TransactionTypeDeposit,
		ReceiverID: int64Ptr(1),
		Amount:     decimal.RequireFromString("100.00"),
		Status:     domain.TransactionStatusSuccess,
		Timestamp:  transfer.Timestamp.Add(-time.Minute),
	}

	rows := pgxmock.NewRows(txColumns())
	txRow(rows, transfer)
	txRow(rows, deposit)

	mock.ExpectQuery("SELECT .+ FROM transactions\\s+WHERE sender_id = \\$1 OR receiver_id = \\$1\\s+ORDER BY id DESC").
		WithArgs(int64(1), 50).
		WillReturnRows(rows)

	result, err := repo.ListByAccount(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, int64(11), result[0].ID)
	assert.Equal(t, int64(10), result[1].ID)
	assert.Nil(t, result[1].SenderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
