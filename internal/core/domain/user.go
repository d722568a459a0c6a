package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of identity categories.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// ParseRole returns the Role named by s, or false if s names none.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleStaff, RoleAdmin:
		return r, true
	}
	return "", false
}

// Capability is an action gated by role.
type Capability int

const (
	// CapHoldAccount: owns a ledger account and may read it.
	CapHoldAccount Capability = iota
	// CapTransact: may move money out of or into the own account.
	CapTransact
	// CapManageUsers: back-office access. No route requires it yet.
	CapManageUsers
)

var roleCapabilities = map[Role][]Capability{
	RoleUser:  {CapHoldAccount, CapTransact},
	RoleStaff: {CapManageUsers},
	RoleAdmin: {CapManageUsers},
}

// Can reports whether the role grants c.
func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// HoldsAccount reports whether identities of this role are provisioned a ledger account.
func (r Role) HoldsAccount() bool {
	return r.Can(CapHoldAccount)
}

// User is an identity record. Email is the login identifier.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	EmployeeID   string    `json:"employee_id,omitempty"`
	OTP          *OTP      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name for notification copy.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// OTP is the outstanding one-time password slot: a salted hash and when it was issued.
type OTP struct {
	Hash     string
	IssuedAt time.Time
}

// OTPState is derived, never stored.
type OTPState int

const (
	OTPStateNone OTPState = iota
	OTPStateOutstanding
	OTPStateExpired
)

func (s OTPState) String() string {
	switch s {
	case OTPStateOutstanding:
		return "outstanding"
	case OTPStateExpired:
		return "expired"
	}
	return "none"
}

// OTPState evaluates the slot at now against the validity window ttl.
func (u *User) OTPState(now time.Time, ttl time.Duration) OTPState {
	if u.OTP == nil || u.OTP.Hash == "" {
		return OTPStateNone
	}
	if now.Sub(u.OTP.IssuedAt) > ttl {
		return OTPStateExpired
	}
	return OTPStateOutstanding
}
