package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository over a Store.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

// Create stages the user and reserves the email until tx ends.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return domain.ErrDuplicateEmail
	}
	if _, taken := s.pendingEmails[u.Email]; taken {
		return domain.ErrDuplicateEmail
	}
	s.pendingEmails[u.Email] = struct{}{}

	mt.mu.Lock()
	mt.users = append(mt.users, copyUser(u))
	mt.mu.Unlock()
	return nil
}

// GetByID returns a copy of the user, or nil.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return copyUser(r.store.users[id]), nil
}

// GetByEmail returns a copy of the user registered under email, or nil.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.byEmail[email]
	if !ok {
		return nil, nil
	}
	return copyUser(r.store.users[id]), nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.mutate(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
	})
}

// SetOTP overwrites the OTP slot.
func (r *UserRepo) SetOTP(ctx context.Context, id uuid.UUID, hash string, issuedAt time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.OTP = &domain.OTP{Hash: hash, IssuedAt: issuedAt}
	})
}

// ConsumeOTP clears the slot if it still holds expectedHash.
func (r *UserRepo) ConsumeOTP(ctx context.Context, id uuid.UUID, expectedHash string) (bool, error) {
	return r.consume(id, expectedHash, nil)
}

// ConsumeOTPAndSetPassword clears the slot and sets the password under one lock.
func (r *UserRepo) ConsumeOTPAndSetPassword(ctx context.Context, id uuid.UUID, expectedHash, passwordHash string) (bool, error) {
	return r.consume(id, expectedHash, func(u *domain.User) {
		u.PasswordHash = passwordHash
	})
}

func (r *UserRepo) consume(id uuid.UUID, expectedHash string, also func(*domain.User)) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[id]
	if !ok || u.OTP == nil || u.OTP.Hash != expectedHash {
		return false, nil
	}
	u.OTP = nil
	if also != nil {
		also(u)
	}
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *UserRepo) mutate(id uuid.UUID, fn func(*domain.User)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.OTP != nil {
		otp := *u.OTP
		c.OTP = &otp
	}
	return &c
}
