package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap attaches an internal cause to a coded error.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err carries an AppError with the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Ledger (TXN) ----

func ErrInsufficientBalance() *AppError {
	return New("TXN_001", "Insufficient balance", http.StatusBadRequest)
}

func ErrInvalidOperation(kind string) *AppError {
	return New("TXN_002", fmt.Sprintf("Invalid transaction type %q", kind), http.StatusBadRequest)
}

func ErrAccountNotFound() *AppError {
	return New("TXN_003", "Account not found", http.StatusNotFound)
}

func ErrSelfTransfer() *AppError {
	return New("TXN_004", "Cannot transfer to the same account", http.StatusBadRequest)
}

func ErrReceiverRequired() *AppError {
	return New("TXN_005", "Receiver account is required for transfers", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("TXN_006", "Amount must be positive with at most two decimal places", http.StatusBadRequest)
}

// ---- One-time passwords (OTP) ----

func ErrNoOTPOutstanding() *AppError {
	return New("OTP_001", "No OTP has been requested", http.StatusBadRequest)
}

func ErrInvalidOTP() *AppError {
	return New("OTP_002", "Invalid OTP", http.StatusBadRequest)
}

func ErrOTPExpired() *AppError {
	return New("OTP_003", "OTP has expired", http.StatusBadRequest)
}

// ---- Accounts (ACC) ----

func ErrExhaustedKeyspace() *AppError {
	return New("ACC_001", "Could not allocate an account number", http.StatusServiceUnavailable)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_004", "Not permitted for this role", http.StatusForbidden)
}

func ErrInvalidRole(role string) *AppError {
	return New("AUTH_005", fmt.Sprintf("Unknown role %q", role), http.StatusBadRequest)
}

func ErrEmployeeIDRequired() *AppError {
	return New("AUTH_006", "Employee id is required for staff and admin", http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Idempotency (IDEM) ----

func ErrIdempotencyInProgress() *AppError {
	return New("IDEM_001", "A request with this idempotency key is still in progress", http.StatusConflict)
}

// ---- Generic ----

func ErrNotFound(entity string) *AppError {
	return New("NOT_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrBodyTooLarge() *AppError {
	return New("VAL_002", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps a storage or infrastructure failure.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}
