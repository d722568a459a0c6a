package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. Every operation runs in one
// database transaction holding exclusive locks on the accounts it touches.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	now         func() time.Time
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		now:         time.Now,
		log:         log,
	}
}

// Execute applies op atomically. A movement rejected for insufficient funds
// still commits a failed record, which is returned with the TXN_001 error.
func (s *LedgerServiceImpl) Execute(ctx context.Context, op ports.Operation) (*domain.Transaction, error) {
	if !op.Type.Valid() {
		return nil, apperror.ErrInvalidOperation(string(op.Type))
	}
	if !domain.ValidAmount(op.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if op.Type == domain.TransactionTypeTransfer && op.AccountID == op.CounterpartyID {
		return nil, apperror.ErrSelfTransfer()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, s.storageError(op, "begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Ascending id order, so opposite transfers between the same pair cannot deadlock.
	ids := []int64{op.AccountID}
	if op.Type == domain.TransactionTypeTransfer {
		ids = append(ids, op.CounterpartyID)
		slices.Sort(ids)
	}

	locked := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, s.storageError(op, "lock account", err)
		}
		if acc == nil {
			return nil, apperror.ErrAccountNotFound()
		}
		locked[id] = acc
	}

	txn := domain.NewTransaction(op.Type, op.Amount, op.Description, s.now().UTC())
	var changed []*domain.Account

	switch op.Type {
	case domain.TransactionTypeWithdraw:
		acc := locked[op.AccountID]
		txn.Between(acc, nil)
		if !acc.CanDebit(op.Amount) {
			return s.reject(ctx, dbTx, op, txn)
		}
		acc.Debit(op.Amount)
		changed = append(changed, acc)

	case domain.TransactionTypeDeposit:
		acc := locked[op.AccountID]
		txn.Between(nil, acc)
		acc.Credit(op.Amount)
		changed = append(changed, acc)

	case domain.TransactionTypeTransfer:
		from, to := locked[op.AccountID], locked[op.CounterpartyID]
		txn.Between(from, to)
		if !from.CanDebit(op.Amount) {
			return s.reject(ctx, dbTx, op, txn)
		}
		from.Debit(op.Amount)
		to.Credit(op.Amount)
		changed = append(changed, from, to)
	}

	for _, acc := range changed {
		if err := s.accountRepo.UpdateBalance(ctx, dbTx, acc.ID, acc.Balance); err != nil {
			return nil, s.storageError(op, "update balance", err)
		}
	}

	if err := txn.Succeed(); err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, s.storageError(op, "create transaction", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, s.storageError(op, "commit tx", err)
	}

	s.log.Info().
		Int64("tx_id", txn.ID).
		Str("type", string(txn.Type)).
		Str("amount", txn.Amount.StringFixed(2)).
		Msg("transaction applied")

	return txn, nil
}

// reject persists txn as failed and commits so the attempt stays on record.
func (s *LedgerServiceImpl) reject(ctx context.Context, dbTx pgx.Tx, op ports.Operation, txn *domain.Transaction) (*domain.Transaction, error) {
	if err := txn.Fail(); err != nil {
		return nil, apperror.InternalError(err)
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, s.storageError(op, "create failed transaction", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, s.storageError(op, "commit tx", err)
	}

	s.log.Info().
		Int64("tx_id", txn.ID).
		Str("type", string(txn.Type)).
		Int64("account_id", op.AccountID).
		Msg("transaction rejected: insufficient balance")

	return txn, apperror.ErrInsufficientBalance()
}

// storageError rolls infrastructure failures up into SYS_001, or SYS_002 when a lock wait timed out.
func (s *LedgerServiceImpl) storageError(op ports.Operation, step string, err error) error {
	wrapped := fmt.Errorf("%s: %w", step, err)
	s.log.Error().Err(err).
		Str("step", step).
		Str("type", string(op.Type)).
		Int64("account_id", op.AccountID).
		Msg("ledger storage failure")

	if errors.Is(err, domain.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrLockTimeout(wrapped)
	}
	return apperror.InternalError(wrapped)
}
