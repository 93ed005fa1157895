package domain

import (
	"strings"
	"time"
)

// AccountKind is the closed set of account types the 2FA core understands.
type AccountKind string

const (
	KindLocal AccountKind = "local" // password based
	KindOAuth AccountKind = "oauth" // delegated to an identity provider
)

func (k AccountKind) Valid() bool {
	return k == KindLocal || k == KindOAuth
}

type Account struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Kind      AccountKind

	PasswordHash  string // argon2 encoded, local accounts only
	OAuthProvider string // oauth accounts only
	OAuthSubject  string // provider "sub", oauth accounts only

	Security Security

	// Version is bumped on every save; a save against a stale version fails.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is "First Last", falling back to the email.
func (a Account) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Email
	}
	return name
}

// Security holds the 2FA state of an account. TwoFactorSecret may be set
// while TwoFactorEnabled is false; that is a pending setup.
type Security struct {
	TwoFactorEnabled     bool
	TwoFactorSecret      string   // base32 TOTP seed
	TwoFactorBackupCodes []string // bcrypt hashes, order carries no meaning
	TwoFactorUpdatedAt   *time.Time
}

// Clear resets every 2FA field.
func (s *Security) Clear(now time.Time) {
	s.TwoFactorEnabled = false
	s.TwoFactorSecret = ""
	s.TwoFactorBackupCodes = nil
	s.TwoFactorUpdatedAt = &now
}
