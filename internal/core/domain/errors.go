package domain

import "errors"

// Sentinel errors raised by storage adapters and the domain model. Services
// translate them into coded apperror values.
var (
	ErrAccountNumberTaken = errors.New("account number already taken")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrLockTimeout        = errors.New("lock wait timed out")
	ErrTransactionSettled = errors.New("transaction already settled")
)
