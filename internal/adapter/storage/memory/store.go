// Package memory is a process-local implementation of the storage ports. It
// honours the same contracts as the PostgreSQL adapter: per-account exclusive
// locks held until commit or rollback, all-or-nothing commits, and unique
// account numbers and emails.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Store holds all committed state. Repositories are thin views over it.
type Store struct {
	mu sync.RWMutex

	accounts     map[int64]*domain.Account
	byNumber     map[string]int64
	byUser       map[uuid.UUID]int64
	users        map[uuid.UUID]*domain.User
	byEmail      map[string]uuid.UUID
	transactions map[int64]*domain.Transaction
	audit        []domain.AuditLog

	// claimed by open transactions, not yet committed
	pendingNumbers map[string]struct{}
	pendingEmails  map[string]struct{}

	locksMu sync.Mutex
	locks   map[int64]chan struct{}

	nextAccountID     int64
	nextTransactionID int64

	lockTimeout time.Duration
}

// NewStore creates an empty store. A positive lockTimeout bounds how long
// GetByIDForUpdate waits for another transaction's lock.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		accounts:       make(map[int64]*domain.Account),
		byNumber:       make(map[string]int64),
		byUser:         make(map[uuid.UUID]int64),
		users:          make(map[uuid.UUID]*domain.User),
		byEmail:        make(map[string]uuid.UUID),
		transactions:   make(map[int64]*domain.Transaction),
		pendingNumbers: make(map[string]struct{}),
		pendingEmails:  make(map[string]struct{}),
		locks:          make(map[int64]chan struct{}),
		lockTimeout:    lockTimeout,
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    s,
		held:     make(map[int64]struct{}),
		balances: make(map[int64]balanceWrite),
	}, nil
}

func (s *Store) semaphore(id int64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	sem, ok := s.locks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[id] = sem
	}
	return sem
}

func (s *Store) acquire(ctx context.Context, id int64) error {
	waitCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	select {
	case s.semaphore(id) <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("lock account %d: %w", id, domain.ErrLockTimeout)
	}
}

func (s *Store) release(id int64) {
	<-s.semaphore(id)
}

type balanceWrite struct {
	balance decimal.Decimal
	at      time.Time
}

// Tx is an open unit of work against a Store. Writes are staged and become
// visible to other readers only on Commit.
type Tx struct {
	pgx.Tx

	store *Store
	mu    sync.Mutex
	done  bool

	held         map[int64]struct{}
	balances     map[int64]balanceWrite
	accounts     []*domain.Account
	users        []*domain.User
	transactions []*domain.Transaction
}

func asTx(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory store: unexpected transaction type %T", tx)
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// Commit publishes every staged write atomically and releases held locks.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for _, u := range t.users {
		s.users[u.ID] = u
		s.byEmail[u.Email] = u.ID
		delete(s.pendingEmails, u.Email)
	}
	for _, a := range t.accounts {
		s.accounts[a.ID] = a
		s.byNumber[a.AccountNumber] = a.ID
		s.byUser[a.UserID] = a.ID
		delete(s.pendingNumbers, a.AccountNumber)
	}
	for id, w := range t.balances {
		if a, ok := s.accounts[id]; ok {
			a.Balance = w.balance
			a.UpdatedAt = w.at
		}
	}
	for _, txn := range t.transactions {
		s.transactions[txn.ID] = txn
	}
	s.mu.Unlock()

	t.releaseLocks()
	return nil
}

// Rollback discards staged writes and releases held locks. Rolling back a
// finished transaction returns pgx.ErrTxClosed, which callers deferring
// Rollback after Commit ignore.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for _, u := range t.users {
		delete(s.pendingEmails, u.Email)
	}
	for _, a := range t.accounts {
		delete(s.pendingNumbers, a.AccountNumber)
	}
	s.mu.Unlock()

	t.releaseLocks()
	return nil
}

func (t *Tx) releaseLocks() {
	for id := range t.held {
		t.store.release(id)
	}
	t.held = nil
}

func (t *Tx) lock(ctx context.Context, id int64) error {
	t.mu.Lock()
	_, already := t.held[id]
	t.mu.Unlock()
	if already {
		return nil
	}
	if err := t.store.acquire(ctx, id); err != nil {
		return err
	}
	t.mu.Lock()
	t.held[id] = struct{}{}
	t.mu.Unlock()
	return nil
}
