package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

// BackupCodeService replaces and spends single-use backup codes.
type BackupCodeService struct {
	Store    store.Store
	Codec    *Codec
	Auth     *Dispatcher
	Observer Observer // optional

	Now func() time.Time
}

// Regenerate authenticates the caller and replaces the whole backup code
// set. The plaintext codes are returned once.
func (s *BackupCodeService) Regenerate(ctx context.Context, accountID string, cred domain.Credential) (codes []string, err error) {
	defer func() { observerOr(s.Observer).Observe("backup_regenerate", Kind(err)) }()
	ctx = slogx.WithAccountID(ctx, accountID)

	acct, err := loadAccount(ctx, s.Store, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.Auth.Authenticate(ctx, acct, cred); err != nil {
		return nil, err
	}
	if !acct.Security.TwoFactorEnabled {
		return nil, ErrNotEnabled
	}

	codes, hashes, err := s.Codec.newBackupCodes()
	if err != nil {
		return nil, err
	}

	now := nowOr(s.Now)
	acct.Security.TwoFactorBackupCodes = hashes
	acct.Security.TwoFactorUpdatedAt = &now
	if err := s.Store.Accounts().SaveSecurity(ctx, &acct); err != nil {
		return nil, storageErr("replace backup codes", err)
	}

	slogx.FromContext(ctx).Info("backup codes regenerated", "count", len(codes))
	return codes, nil
}

// Consume spends code if it matches one of the account's stored hashes.
// On a match the hash is removed, the account is saved and account is
// updated in place. No match leaves everything untouched.
func (s *BackupCodeService) Consume(ctx context.Context, account *domain.Account, code string) (bool, error) {
	i := s.Match(*account, code)
	if i < 0 {
		return false, nil
	}
	if err := s.spend(ctx, account, code, i); err != nil {
		return false, err
	}
	return true, nil
}

// Match returns the index of the stored hash code matches, or -1. bcrypt
// runs against every stored hash so timing doesn't reveal where the match sat.
func (s *BackupCodeService) Match(account domain.Account, code string) int {
	code = cryptox.NormalizeBackupCode(code)
	if len(code) != cryptox.BackupCodeLength {
		return -1
	}

	match := -1
	for i, h := range account.Security.TwoFactorBackupCodes {
		if s.Codec.VerifyHash(code, h) && match < 0 {
			match = i
		}
	}
	return match
}

// spendAttempts bounds how often spend re-reads the account after losing a
// version race.
const spendAttempts = 3

// spend removes the hash at index i and saves the account. When another
// writer got there first the account is reloaded and code is matched again,
// so only a code that is really gone fails with ErrInvalidCode.
func (s *BackupCodeService) spend(ctx context.Context, account *domain.Account, code string, i int) error {
	current := *account
	for attempt := 1; ; attempt++ {
		updated := current
		updated.Security.TwoFactorBackupCodes = slices.Delete(slices.Clone(current.Security.TwoFactorBackupCodes), i, i+1)

		err := s.Store.Accounts().SaveSecurity(ctx, &updated)
		if err == nil {
			*account = updated
			slogx.FromContext(ctx).Info("backup code used", "remaining", len(updated.Security.TwoFactorBackupCodes))
			return nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt == spendAttempts {
			return storageErr("spend backup code", err)
		}

		current, err = loadAccount(ctx, s.Store, account.ID)
		if err != nil {
			return err
		}
		if !current.Security.TwoFactorEnabled {
			return ErrAccountNotFoundOr2FADisabled
		}
		if i = s.Match(current, code); i < 0 {
			// Spent by a concurrent sign-in, or the set was regenerated.
			return ErrInvalidCode
		}
	}
}
