package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, phone_number, first_name, last_name, password_hash, role, employee_id, otp_hash, otp_created_at, created_at, updated_at`

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user within tx.
func (r *UserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `INSERT INTO users (id, email, phone_number, first_name, last_name, password_hash, role, employee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		u.ID, u.Email, u.PhoneNumber, u.FirstName, u.LastName,
		u.PasswordHash, u.Role, u.EmployeeID, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by UUID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id), "get user by id")
}

// GetByEmail fetches a user by login email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email), "get user by email")
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// SetOTP stores a fresh code hash, replacing whatever was outstanding.
func (r *UserRepo) SetOTP(ctx context.Context, id uuid.UUID, hash string, issuedAt time.Time) error {
	query := `UPDATE users SET otp_hash = $1, otp_created_at = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, hash, issuedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// ConsumeOTP clears the slot if it still holds expectedHash. Two concurrent
// consumers of the same code cannot both see a row affected.
func (r *UserRepo) ConsumeOTP(ctx context.Context, id uuid.UUID, expectedHash string) (bool, error) {
	query := `UPDATE users SET otp_hash = NULL, otp_created_at = NULL, updated_at = $1
		WHERE id = $2 AND otp_hash = $3`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), id, expectedHash)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeOTPAndSetPassword clears the slot and sets the password in one statement.
func (r *UserRepo) ConsumeOTPAndSetPassword(ctx context.Context, id uuid.UUID, expectedHash, passwordHash string) (bool, error) {
	query := `UPDATE users SET otp_hash = NULL, otp_created_at = NULL, password_hash = $1, updated_at = $2
		WHERE id = $3 AND otp_hash = $4`

	tag, err := r.pool.Exec(ctx, query, passwordHash, time.Now().UTC(), id, expectedHash)
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row, op string) (*domain.User, error) {
	u := &domain.User{}
	var (
		otpHash     *string
		otpIssuedAt *time.Time
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PhoneNumber, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Role, &u.EmployeeID, &otpHash, &otpIssuedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if otpHash != nil && otpIssuedAt != nil {
		u.OTP = &domain.OTP{Hash: *otpHash, IssuedAt: *otpIssuedAt}
	}
	return u, nil
}
