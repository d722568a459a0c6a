package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository over a Store.
type AccountRepo struct {
	store *Store
}

// NewAccountRepo creates an AccountRepo.
func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

// Create stages the account and reserves its number until tx ends.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.Account) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byNumber[a.AccountNumber]; taken {
		return domain.ErrAccountNumberTaken
	}
	if _, taken := s.pendingNumbers[a.AccountNumber]; taken {
		return domain.ErrAccountNumberTaken
	}
	if _, exists := s.byUser[a.UserID]; exists {
		return fmt.Errorf("insert account: user %s already holds an account", a.UserID)
	}

	s.nextAccountID++
	a.ID = s.nextAccountID
	s.pendingNumbers[a.AccountNumber] = struct{}{}

	staged := *a
	mt.mu.Lock()
	mt.accounts = append(mt.accounts, &staged)
	mt.mu.Unlock()
	return nil
}

// GetByID returns a copy of the committed account, or nil.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return copyAccount(r.store.accounts[id]), nil
}

// GetByUserID returns the account owned by userID, or nil.
func (r *AccountRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.byUser[userID]
	if !ok {
		return nil, nil
	}
	return copyAccount(r.store.accounts[id]), nil
}

// GetByAccountNumber returns the account with the given number, or nil.
func (r *AccountRepo) GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.byNumber[number]
	if !ok {
		return nil, nil
	}
	return copyAccount(r.store.accounts[id]), nil
}

// GetByIDForUpdate takes the account's exclusive lock for the lifetime of tx
// and returns the account as tx sees it.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Account, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	_, exists := r.store.accounts[id]
	r.store.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	if err := mt.lock(ctx, id); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	a := copyAccount(r.store.accounts[id])
	r.store.mu.RUnlock()

	mt.mu.Lock()
	if w, ok := mt.balances[id]; ok {
		a.Balance = w.balance
		a.UpdatedAt = w.at
	}
	mt.mu.Unlock()
	return a, nil
}

// UpdateBalance stages the new balance; it is published on Commit.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id int64, balance decimal.Decimal) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.RLock()
	_, exists := r.store.accounts[id]
	r.store.mu.RUnlock()
	if !exists {
		return fmt.Errorf("account not found: %d", id)
	}

	mt.mu.Lock()
	mt.balances[id] = balanceWrite{balance: balance, at: time.Now().UTC()}
	mt.mu.Unlock()
	return nil
}

func copyAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
