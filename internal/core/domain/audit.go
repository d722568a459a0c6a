package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister       AuditAction = "REGISTER"
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionTransaction    AuditAction = "TRANSACTION"
	AuditActionOTPRequest     AuditAction = "OTP_REQUEST"
	AuditActionPasswordReset  AuditAction = "PASSWORD_RESET"
	AuditActionPasswordChange AuditAction = "PASSWORD_CHANGE"
)

// AuditLog records one successful write operation.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
