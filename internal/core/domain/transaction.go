package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the three supported movements.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeWithdraw, TransactionTypeDeposit, TransactionTypeTransfer:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is an immutable ledger entry. Once Status is terminal the record is never changed.
type Transaction struct {
	ID          int64             `json:"id"`
	Type        TransactionType   `json:"transaction_type"`
	SenderID    *int64            `json:"sender_id,omitempty"`
	ReceiverID  *int64            `json:"receiver_id,omitempty"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewTransaction starts a pending record stamped with now.
func NewTransaction(kind TransactionType, amount decimal.Decimal, description string, now time.Time) *Transaction {
	return &Transaction{
		Type:        kind,
		Amount:      amount,
		Status:      TransactionStatusPending,
		Description: description,
		Timestamp:   now,
	}
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}

// Succeed moves a pending transaction to success.
func (t *Transaction) Succeed() error {
	return t.settle(TransactionStatusSuccess)
}

// Fail moves a pending transaction to failed.
func (t *Transaction) Fail() error {
	return t.settle(TransactionStatusFailed)
}

func (t *Transaction) settle(status TransactionStatus) error {
	if t.IsTerminal() {
		return ErrTransactionSettled
	}
	t.Status = status
	return nil
}

// Between sets the account references the transaction type calls for.
func (t *Transaction) Between(sender, receiver *Account) {
	if sender != nil {
		id := sender.ID
		t.SenderID = &id
	}
	if receiver != nil {
		id := receiver.ID
		t.ReceiverID = &id
	}
}
