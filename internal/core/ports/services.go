package ports

import (
	"context"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService produces and checks salted Argon2id hashes (passwords and OTP codes).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// --- Ledger ---

// Operation is one requested money movement. AccountID is the account acted on
// (the sender of a transfer); CounterpartyID is only used by transfers.
type Operation struct {
	Type           domain.TransactionType
	AccountID      int64
	CounterpartyID int64
	Amount         decimal.Decimal
	Description    string
}

// LedgerService applies money movements atomically.
type LedgerService interface {
	// Execute returns the persisted record. On insufficient funds it returns the
	// failed record together with a TXN_001 error.
	Execute(ctx context.Context, op Operation) (*domain.Transaction, error)
}

// AccountService resolves accounts for request handlers.
type AccountService interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error)
	History(ctx context.Context, accountID int64) ([]domain.Transaction, error)
}

// --- Identity ---

// AuthService defines registration and credential management.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Role        domain.Role
	EmployeeID  string // required for staff and admin
}

// RegisterResponse is the registration result. AccountNumber is empty for
// roles that hold no account.
type RegisterResponse struct {
	UserID        uuid.UUID
	Role          domain.Role
	AccountNumber string
}

// OTPService issues and verifies password-reset codes.
type OTPService interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, userID uuid.UUID, code string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// --- Rate limiting ---

// RateLimitStore is an atomic fixed-window counter.
type RateLimitStore interface {
	// Hit increments key and returns the count in the current window and the time until it resets.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitDecision is the outcome of one rate-limit check.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter applies per-scope quotas to a principal.
type RateLimiter interface {
	Allow(ctx context.Context, principal, scope string) (*RateLimitDecision, error)
}

// --- Side channels ---

// Notifier accepts a notification for asynchronous delivery. It never blocks
// on delivery and never reports delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// MailSender performs one delivery attempt.
type MailSender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// MessageSealer encrypts a message body so that it only opens for the same recipient.
type MessageSealer interface {
	Seal(plaintext, recipient string) (string, error)
	Open(sealed, recipient string) (string, error)
}

// MessageSigner authenticates published message payloads.
type MessageSigner interface {
	Sign(payload []byte) string
	Verify(payload []byte, signature string) bool
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
