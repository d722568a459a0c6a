package dto

import "github.com/shopspring/decimal"

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	Password    string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	FirstName   string `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string `json:"last_name" binding:"max=100"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,e164"`
	Role        string `json:"role" binding:"omitempty,oneof=user staff admin"`
	EmployeeID  string `json:"employee_id" binding:"omitempty,max=20"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	AccountNumber string `json:"account_number,omitempty"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// ForgotPasswordRequest asks for a reset code to be mailed.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest sets a new password using a mailed code.
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=4,numeric"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=128" sanitize:"-"`
}

// ChangePasswordRequest replaces the password of the authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required" sanitize:"-"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128,nefield=CurrentPassword" sanitize:"-"`
}

// MessageResponse carries a human-readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// TransactionRequest is the request body for POST /transactions.
type TransactionRequest struct {
	TransactionType       string          `json:"transaction_type" binding:"required,oneof=withdraw deposit transfer"`
	Amount                decimal.Decimal `json:"amount" binding:"required,money"`
	ReceiverAccountNumber string          `json:"receiver_account_number" binding:"omitempty,account_number"`
	Description           string          `json:"description" binding:"max=255"`
}

// TransactionResult is the deliberately small success body of POST /transactions.
type TransactionResult struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// AccountResponse is the caller's own account view.
type AccountResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
}

// TransactionResponse is one entry of the caller's history.
type TransactionResponse struct {
	ID              int64  `json:"id"`
	TransactionType string `json:"transaction_type"`
	Direction       string `json:"direction"` // debit or credit, relative to the caller
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	Description     string `json:"description,omitempty"`
	Timestamp       string `json:"timestamp"`
}

// TransactionListResponse wraps the caller's history.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Count int                   `json:"count"`
}
