package memory

import (
	"context"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository over a Store.
type AuditRepo struct {
	store *Store
}

// NewAuditRepo creates an AuditRepo.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

// Create appends the entry.
func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.store.mu.Lock()
	r.store.audit = append(r.store.audit, *log)
	r.store.mu.Unlock()
	return nil
}

// Entries returns a snapshot of the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.AuditLog, len(r.store.audit))
	copy(out, r.store.audit)
	return out
}
