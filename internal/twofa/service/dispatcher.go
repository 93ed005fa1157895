package service

import (
	"context"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
)

// Authenticator proves ownership of one kind of account.
type Authenticator interface {
	Kind() domain.AccountKind
	Authenticate(ctx context.Context, account domain.Account, cred domain.Credential) error
}

// PasswordComparer is the account store's password predicate.
type PasswordComparer interface {
	ComparePassword(ctx context.Context, account domain.Account, plaintext string) (bool, error)
}

// OwnershipResult is a TokenOwnershipVerifier verdict.
type OwnershipResult struct {
	Valid  bool
	Reason string
}

// TokenOwnershipVerifier checks that an OAuth access token was issued to
// the given account. Transport failures come back as errors, a token that
// belongs to someone else as Valid=false.
type TokenOwnershipVerifier interface {
	Verify(ctx context.Context, accessToken, accountID string) (OwnershipResult, error)
}

// LocalAuthenticator checks a password against the stored hash.
type LocalAuthenticator struct {
	Passwords PasswordComparer
}

func (LocalAuthenticator) Kind() domain.AccountKind { return domain.KindLocal }

func (a LocalAuthenticator) Authenticate(ctx context.Context, account domain.Account, cred domain.Credential) error {
	if cred.Password == "" {
		return ErrMissingCredential
	}
	ok, err := a.Passwords.ComparePassword(ctx, account, cred.Password)
	if err != nil {
		return storageErr("compare password", err)
	}
	if !ok {
		return ErrInvalidCredential
	}
	return nil
}

// OAuthAuthenticator checks that an access token belongs to the account.
type OAuthAuthenticator struct {
	Verifier TokenOwnershipVerifier
}

func (OAuthAuthenticator) Kind() domain.AccountKind { return domain.KindOAuth }

func (a OAuthAuthenticator) Authenticate(ctx context.Context, account domain.Account, cred domain.Credential) error {
	if cred.OAuthAccessToken == "" {
		return ErrMissingCredential
	}
	res, err := a.Verifier.Verify(ctx, cred.OAuthAccessToken, account.ID)
	if err != nil {
		return providerErr(err)
	}
	if !res.Valid {
		return &OwnershipError{Reason: res.Reason}
	}
	return nil
}

// Dispatcher routes an ownership check to the Authenticator for the
// account's kind.
type Dispatcher struct {
	byKind map[domain.AccountKind]Authenticator
}

// NewDispatcher registers one Authenticator per account kind; a later
// entry for the same kind wins.
func NewDispatcher(auths ...Authenticator) *Dispatcher {
	d := &Dispatcher{byKind: make(map[domain.AccountKind]Authenticator, len(auths))}
	for _, a := range auths {
		d.byKind[a.Kind()] = a
	}
	return d
}

// Authenticate fails with ErrUnsupportedAccountKind when no Authenticator
// handles the account's kind.
func (d *Dispatcher) Authenticate(ctx context.Context, account domain.Account, cred domain.Credential) error {
	auth, ok := d.byKind[account.Kind]
	if !ok {
		return ErrUnsupportedAccountKind
	}
	return auth.Authenticate(ctx, account, cred)
}
