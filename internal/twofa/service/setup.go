package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

// SetupService drives an account through NotConfigured -> PendingVerification
// -> Enabled and back via Disable.
type SetupService struct {
	Store    store.Store
	Tokens   tokenstore.Store[domain.SetupToken]
	Codec    *Codec
	Auth     *Dispatcher
	QR       QRRenderer // optional
	Notifier Notifier   // optional
	Observer Observer   // optional

	NotifyTimeout time.Duration
	Now           func() time.Time

	notifications sync.WaitGroup
}

// Status reports the account's 2FA state. Backup codes only count once 2FA
// is enabled.
func (s *SetupService) Status(ctx context.Context, accountID string) (domain.TwoFactorStatus, error) {
	acct, err := loadAccount(ctx, s.Store, accountID)
	if err != nil {
		return domain.TwoFactorStatus{}, err
	}

	st := domain.TwoFactorStatus{
		Enabled:       acct.Security.TwoFactorEnabled,
		LastChangedAt: acct.Security.TwoFactorUpdatedAt,
	}
	if st.Enabled {
		st.BackupCodesRemaining = len(acct.Security.TwoFactorBackupCodes)
	}
	return st, nil
}

// Begin authenticates the caller, stores a pending secret and fresh backup
// codes on the account, and issues a setup token bound to that secret. A
// second Begin replaces the pending secret, which orphans earlier tokens.
func (s *SetupService) Begin(ctx context.Context, accountID string, cred domain.Credential) (res domain.SetupBegin, err error) {
	defer func() { observerOr(s.Observer).Observe("setup_begin", Kind(err)) }()
	ctx = slogx.WithAccountID(ctx, accountID)
	log := slogx.FromContext(ctx)

	acct, err := loadAccount(ctx, s.Store, accountID)
	if err != nil {
		return domain.SetupBegin{}, err
	}
	if err := s.Auth.Authenticate(ctx, acct, cred); err != nil {
		log.Warn("2fa setup authentication failed", "kind", acct.Kind, "err", err)
		return domain.SetupBegin{}, err
	}
	if acct.Security.TwoFactorEnabled {
		return domain.SetupBegin{}, ErrAlreadyEnabled
	}

	secret, err := s.Codec.GenerateSecret()
	if err != nil {
		return domain.SetupBegin{}, err
	}
	uri, err := s.Codec.ProvisioningURI(acct.Email, secret)
	if err != nil {
		return domain.SetupBegin{}, err
	}
	codes, hashes, err := s.Codec.newBackupCodes()
	if err != nil {
		return domain.SetupBegin{}, err
	}

	now := nowOr(s.Now)
	acct.Security.TwoFactorEnabled = false
	acct.Security.TwoFactorSecret = secret
	acct.Security.TwoFactorBackupCodes = hashes
	acct.Security.TwoFactorUpdatedAt = &now
	if err := s.Store.Accounts().SaveSecurity(ctx, &acct); err != nil {
		return domain.SetupBegin{}, storageErr("save pending secret", err)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.SetupBegin{}, err
	}
	st := domain.SetupToken{
		Token:     token,
		AccountID: acct.ID,
		Secret:    secret,
		Kind:      acct.Kind,
		CreatedAt: now,
		ExpiresAt: now.Add(s.Tokens.TTL()),
	}
	if err := s.Tokens.Put(ctx, token, st); err != nil {
		return domain.SetupBegin{}, storageErr("store setup token", err)
	}

	res = domain.SetupBegin{
		Secret:          secret,
		ProvisioningURI: uri,
		BackupCodes:     codes,
		SetupToken:      token,
		ExpiresAt:       st.ExpiresAt,
	}
	if s.QR != nil {
		if qr, qrErr := s.QR.RenderDataURL(uri); qrErr != nil {
			log.Warn("qr render failed", "err", qrErr)
		} else {
			res.QRCode = qr
		}
	}

	log.Info("2fa setup started", "kind", acct.Kind, "expires_at", st.ExpiresAt)
	return res, nil
}

// Confirm enables 2FA when code is valid for the secret bound to
// setupToken. A wrong code leaves the token usable; success consumes it.
func (s *SetupService) Confirm(ctx context.Context, accountID, setupToken, code string) (err error) {
	defer func() { observerOr(s.Observer).Observe("setup_confirm", Kind(err)) }()
	ctx = slogx.WithAccountID(ctx, accountID)
	log := slogx.FromContext(ctx)

	tok, ok, err := s.Tokens.Get(ctx, setupToken)
	if err != nil {
		return storageErr("load setup token", err)
	}
	if !ok {
		return ErrInvalidOrExpiredToken
	}
	if tok.AccountID != accountID {
		log.Warn("setup token presented by another account")
		return ErrTokenAccountMismatch
	}
	if !s.Codec.VerifyCode(code, tok.Secret) {
		return ErrInvalidCode
	}

	acct, err := loadAccount(ctx, s.Store, accountID)
	if err != nil {
		return err
	}
	if acct.Security.TwoFactorEnabled || acct.Security.TwoFactorSecret != tok.Secret {
		// A later Begin (or a completed setup) superseded this token.
		_ = s.Tokens.Delete(ctx, setupToken)
		return ErrInvalidOrExpiredToken
	}

	if _, ok, err := s.Tokens.Take(ctx, setupToken); err != nil {
		return storageErr("consume setup token", err)
	} else if !ok {
		return ErrInvalidOrExpiredToken
	}

	now := nowOr(s.Now)
	acct.Security.TwoFactorEnabled = true
	acct.Security.TwoFactorSecret = tok.Secret
	acct.Security.TwoFactorUpdatedAt = &now
	if err := s.Store.Accounts().SaveSecurity(ctx, &acct); err != nil {
		return storageErr("enable 2fa", err)
	}

	log.Info("2fa enabled", "kind", acct.Kind)
	s.notifyEnabled(ctx, acct)
	return nil
}

// Disable authenticates the caller and clears every 2FA field, including a
// pending setup.
func (s *SetupService) Disable(ctx context.Context, accountID string, cred domain.Credential) (err error) {
	defer func() { observerOr(s.Observer).Observe("disable", Kind(err)) }()
	ctx = slogx.WithAccountID(ctx, accountID)

	acct, err := loadAccount(ctx, s.Store, accountID)
	if err != nil {
		return err
	}
	if err := s.Auth.Authenticate(ctx, acct, cred); err != nil {
		return err
	}
	if !acct.Security.TwoFactorEnabled && acct.Security.TwoFactorSecret == "" {
		return ErrNotEnabled
	}

	acct.Security.Clear(nowOr(s.Now))
	if err := s.Store.Accounts().SaveSecurity(ctx, &acct); err != nil {
		return storageErr("disable 2fa", err)
	}

	slogx.FromContext(ctx).Info("2fa disabled", "kind", acct.Kind)
	return nil
}

// WaitNotifications blocks until in-flight notifications finish or ctx ends.
func (s *SetupService) WaitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SetupService) notifyEnabled(ctx context.Context, acct domain.Account) {
	if s.Notifier == nil {
		return
	}
	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	log := slogx.FromContext(ctx)
	detached := context.WithoutCancel(ctx)

	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		if err := s.Notifier.NotifyTwoFactorEnabled(ctx, acct.Email, acct.FirstName); err != nil {
			log.Warn("2fa enabled notification dropped", "err", err)
		}
	}()
}

func loadAccount(ctx context.Context, st store.Store, accountID string) (domain.Account, error) {
	acct, err := st.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, storageErr("load account", err)
	}
	return acct, nil
}
