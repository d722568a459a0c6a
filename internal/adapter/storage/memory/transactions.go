package memory

import (
	"context"
	"sort"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository over a Store.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a TransactionRepo.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Create assigns the next ID and stages the record.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	r.store.nextTransactionID++
	t.ID = r.store.nextTransactionID
	r.store.mu.Unlock()

	mt.mu.Lock()
	mt.transactions = append(mt.transactions, copyTransaction(t))
	mt.mu.Unlock()
	return nil
}

// GetByID returns a copy of the committed record, or nil.
func (r *TransactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return copyTransaction(r.store.transactions[id]), nil
}

// ListByAccount returns up to limit records touching accountID, newest first.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	r.store.mu.RLock()
	out := make([]domain.Transaction, 0)
	for _, t := range r.store.transactions {
		if touches(t.SenderID, accountID) || touches(t.ReceiverID, accountID) {
			out = append(out, *copyTransaction(t))
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func touches(ref *int64, id int64) bool {
	return ref != nil && *ref == id
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.SenderID != nil {
		v := *t.SenderID
		c.SenderID = &v
	}
	if t.ReceiverID != nil {
		v := *t.ReceiverID
		c.ReceiverID = &v
	}
	return &c
}
