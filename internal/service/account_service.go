package service

import (
	"context"
	"fmt"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 50

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	accountRepo  ports.AccountRepository
	txRepo       ports.TransactionRepository
	historyLimit int
}

// NewAccountService creates a new AccountServiceImpl. historyLimit caps History results.
func NewAccountService(accountRepo ports.AccountRepository, txRepo ports.TransactionRepository, historyLimit int) *AccountServiceImpl {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &AccountServiceImpl{
		accountRepo:  accountRepo,
		txRepo:       txRepo,
		historyLimit: historyLimit,
	}
}

// GetByUserID returns the caller's own account or TXN_003.
func (s *AccountServiceImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	acc, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by user: %w", err))
	}
	if acc == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return acc, nil
}

// GetByAccountNumber resolves an externally supplied account number or returns TXN_003.
func (s *AccountServiceImpl) GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	acc, err := s.accountRepo.GetByAccountNumber(ctx, number)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account by number: %w", err))
	}
	if acc == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return acc, nil
}

// History returns the newest transactions touching accountID.
func (s *AccountServiceImpl) History(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListByAccount(ctx, accountID, s.historyLimit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}
