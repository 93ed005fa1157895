package service

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential      = errors.New("credential required")
	ErrInvalidCredential      = errors.New("invalid credential")
	ErrOwnershipMismatch      = errors.New("oauth token does not belong to account")
	ErrUnsupportedAccountKind = errors.New("unsupported account kind")

	// ErrInvalidOrExpiredToken covers unknown, expired and already used
	// tokens alike.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrTokenAccountMismatch  = errors.New("token was issued to another account")
	ErrEmailMismatch         = errors.New("account email changed since challenge was issued")
	ErrInvalidCode           = errors.New("invalid code")

	ErrNotEnabled                   = errors.New("2FA not enabled")
	ErrAlreadyEnabled               = errors.New("2FA already enabled")
	ErrAccountNotFound              = errors.New("account not found")
	ErrAccountNotFoundOr2FADisabled = errors.New("account not found or 2FA disabled")

	ErrStorage  = errors.New("storage failure")
	ErrProvider = errors.New("identity provider failure")
)

// OwnershipError carries the verifier's reason for rejecting an OAuth token.
// It matches ErrOwnershipMismatch under errors.Is.
type OwnershipError struct {
	Reason string
}

func (e *OwnershipError) Error() string {
	if e.Reason == "" {
		return ErrOwnershipMismatch.Error()
	}
	return ErrOwnershipMismatch.Error() + ": " + e.Reason
}

func (e *OwnershipError) Unwrap() error { return ErrOwnershipMismatch }

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func providerErr(err error) error {
	return fmt.Errorf("%w: %w", ErrProvider, err)
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrMissingCredential, "missing_credential"},
	{ErrInvalidCredential, "invalid_credential"},
	{ErrOwnershipMismatch, "ownership_mismatch"},
	{ErrUnsupportedAccountKind, "unsupported_account_kind"},
	{ErrInvalidOrExpiredToken, "invalid_or_expired_token"},
	{ErrTokenAccountMismatch, "token_account_mismatch"},
	{ErrEmailMismatch, "email_mismatch"},
	{ErrInvalidCode, "invalid_code"},
	{ErrNotEnabled, "not_enabled"},
	{ErrAlreadyEnabled, "already_enabled"},
	{ErrAccountNotFoundOr2FADisabled, "account_not_found_or_2fa_disabled"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrStorage, "storage_failure"},
	{ErrProvider, "provider_failure"},
}

// Kind names the error's taxonomy entry for logs and metrics: "ok" for nil,
// "internal" for anything outside the taxonomy.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
