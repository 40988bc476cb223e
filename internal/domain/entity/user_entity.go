package entity

import (
	"strings"
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Address is an optional postal address; every part is optional.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// IsZero reports whether no part of the address is set.
func (a Address) IsZero() bool { return a == Address{} }

// User is the aggregate root for the credential store.
// Password holds the bcrypt hash and is never serialized.
// PasswordResetToken holds the sha256 digest of the emailed token, not the token itself.
type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name" binding:"required,min=2"`
	Email                string     `json:"email" binding:"required,email"`
	Password             string     `json:"-" binding:"required"`
	Role                 Role       `json:"role" binding:"required,role"`
	Address              Address    `json:"address"`
	PasswordResetToken   *string    `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// SetPasswordReset stores the reset digest and its expiry together.
func (u *User) SetPasswordReset(hash string, expires time.Time) {
	u.PasswordResetToken = &hash
	u.PasswordResetExpires = &expires
}

// ClearPasswordReset removes both reset fields.
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// Scrubbed returns a copy that is safe to hand to callers: no password hash, no reset fields.
func (u *User) Scrubbed() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Password = ""
	cp.ClearPasswordReset()
	return &cp
}
