package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

// SignInService is the primary authentication step. Accounts without 2FA
// get a finished LoginResult; the rest get a challenge from Login.
type SignInService struct {
	Store    store.Store
	Auth     *Dispatcher
	Login    *LoginService
	Observer Observer // optional
}

// PasswordLogin signs a local account in by email and password. Unknown
// emails and non-local accounts fail exactly like a wrong password.
func (s *SignInService) PasswordLogin(ctx context.Context, email, password string) (res domain.SignIn, err error) {
	defer func() { observerOr(s.Observer).Observe("password_login", Kind(err)) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return domain.SignIn{}, ErrMissingCredential
	}

	acct, err := s.Store.Accounts().GetAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.SignIn{}, ErrInvalidCredential
	}
	if err != nil {
		return domain.SignIn{}, storageErr("load account", err)
	}
	if acct.Kind != domain.KindLocal {
		return domain.SignIn{}, ErrInvalidCredential
	}

	ctx = slogx.WithAccountID(ctx, acct.ID)
	if err := s.Auth.Authenticate(ctx, acct, domain.Credential{Password: password}); err != nil {
		slogx.FromContext(ctx).Warn("password login failed", "err", err)
		return domain.SignIn{}, err
	}
	return s.finish(ctx, acct, nil)
}

// OAuthLogin signs an oauth account in with provider tokens obtained by the
// caller. The access token must belong to accountID.
func (s *SignInService) OAuthLogin(ctx context.Context, accountID string, tokens domain.OAuthTokens) (res domain.SignIn, err error) {
	defer func() { observerOr(s.Observer).Observe("oauth_login", Kind(err)) }()
	ctx = slogx.WithAccountID(ctx, accountID)

	acct, err := loadAccount(ctx, s.Store, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return domain.SignIn{}, ErrInvalidCredential
	}
	if err != nil {
		return domain.SignIn{}, err
	}
	if acct.Kind != domain.KindOAuth {
		return domain.SignIn{}, ErrInvalidCredential
	}

	if err := s.Auth.Authenticate(ctx, acct, domain.Credential{OAuthAccessToken: tokens.AccessToken}); err != nil {
		slogx.FromContext(ctx).Warn("oauth login failed", "err", err)
		return domain.SignIn{}, err
	}
	return s.finish(ctx, acct, &tokens)
}

func (s *SignInService) finish(ctx context.Context, acct domain.Account, tokens *domain.OAuthTokens) (domain.SignIn, error) {
	if acct.Security.TwoFactorEnabled {
		ch, err := s.Login.IssueChallenge(ctx, ChallengeRequest{
			AccountID:   acct.ID,
			Email:       acct.Email,
			Kind:        acct.Kind,
			OAuthTokens: tokens,
		})
		if err != nil {
			return domain.SignIn{}, err
		}
		return domain.SignIn{Challenge: &ch}, nil
	}

	slogx.FromContext(ctx).Info("signed in", "kind", acct.Kind)
	return domain.SignIn{Result: &domain.LoginResult{
		AccountID:   acct.ID,
		Email:       acct.Email,
		Name:        acct.DisplayName(),
		Kind:        acct.Kind,
		OAuthTokens: tokens,
		Methods:     []string{primaryMethod(acct.Kind)},
	}}, nil
}
