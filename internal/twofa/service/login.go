package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

// ChallengeRequest describes a primary sign-in that still needs a second factor.
type ChallengeRequest struct {
	AccountID   string
	Email       string
	Kind        domain.AccountKind
	OAuthTokens *domain.OAuthTokens
}

// LoginService bridges a completed primary sign-in and the 2FA code check
// with a short-lived temp token.
type LoginService struct {
	Store       store.Store
	Tokens      tokenstore.Store[domain.TempLoginToken]
	Codec       *Codec
	BackupCodes *BackupCodeService
	Observer    Observer // optional

	Now func() time.Time
}

// IssueChallenge stores a temp login token for req and returns it.
func (s *LoginService) IssueChallenge(ctx context.Context, req ChallengeRequest) (ch domain.LoginChallenge, err error) {
	defer func() { observerOr(s.Observer).Observe("challenge_issue", Kind(err)) }()

	if !req.Kind.Valid() {
		return domain.LoginChallenge{}, ErrUnsupportedAccountKind
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.LoginChallenge{}, err
	}

	now := nowOr(s.Now)
	tmp := domain.TempLoginToken{
		Token:       token,
		AccountID:   req.AccountID,
		Email:       req.Email,
		Kind:        req.Kind,
		OAuthTokens: req.OAuthTokens,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.Tokens.TTL()),
	}
	if err := s.Tokens.Put(ctx, token, tmp); err != nil {
		return domain.LoginChallenge{}, storageErr("store temp token", err)
	}

	slogx.FromContext(ctx).Info("2fa challenge issued", "account_id", req.AccountID, "kind", req.Kind)
	return domain.LoginChallenge{TempToken: token, ExpiresAt: tmp.ExpiresAt}, nil
}

// Verify completes a challenge with a TOTP code or a backup code. A wrong
// code leaves tempToken usable until it expires; success consumes it.
func (s *LoginService) Verify(ctx context.Context, code, tempToken string) (res domain.LoginResult, err error) {
	defer func() { observerOr(s.Observer).Observe("challenge_verify", Kind(err)) }()

	tmp, ok, err := s.Tokens.Get(ctx, tempToken)
	if err != nil {
		return domain.LoginResult{}, storageErr("load temp token", err)
	}
	if !ok {
		return domain.LoginResult{}, ErrInvalidOrExpiredToken
	}
	ctx = slogx.WithAccountID(ctx, tmp.AccountID)
	log := slogx.FromContext(ctx)

	acct, err := s.Store.Accounts().GetAccountByID(ctx, tmp.AccountID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !acct.Security.TwoFactorEnabled) {
		_ = s.Tokens.Delete(ctx, tempToken)
		return domain.LoginResult{}, ErrAccountNotFoundOr2FADisabled
	}
	if err != nil {
		return domain.LoginResult{}, storageErr("load account", err)
	}
	if !sameEmail(tmp.Email, acct.Email) {
		log.Warn("2fa challenge email no longer matches account")
		_ = s.Tokens.Delete(ctx, tempToken)
		return domain.LoginResult{}, ErrEmailMismatch
	}

	backupIdx := s.BackupCodes.Match(acct, code)
	usedTOTP := backupIdx < 0 && s.Codec.VerifyCode(code, acct.Security.TwoFactorSecret)
	if backupIdx < 0 && !usedTOTP {
		log.Warn("2fa challenge code rejected")
		return domain.LoginResult{}, ErrInvalidCode
	}

	// Commit point: only one caller gets the token.
	if _, ok, err := s.Tokens.Take(ctx, tempToken); err != nil {
		return domain.LoginResult{}, storageErr("consume temp token", err)
	} else if !ok {
		return domain.LoginResult{}, ErrInvalidOrExpiredToken
	}

	method := domain.MethodTOTP
	methods := []string{primaryMethod(tmp.Kind)}
	if usedTOTP {
		methods = append(methods, jwtx.AMROTP, jwtx.AMRMFA)
	} else {
		if err := s.BackupCodes.spend(ctx, &acct, code, backupIdx); err != nil {
			return domain.LoginResult{}, err
		}
		method = domain.MethodBackupCode
		methods = append(methods, jwtx.AMRMFA)
	}

	log.Info("2fa challenge passed", "kind", tmp.Kind, "method", method)
	return domain.LoginResult{
		AccountID:   acct.ID,
		Email:       acct.Email,
		Name:        acct.DisplayName(),
		Kind:        tmp.Kind,
		OAuthTokens: tmp.OAuthTokens,
		Methods:     methods,
	}, nil
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func primaryMethod(kind domain.AccountKind) string {
	if kind == domain.KindOAuth {
		return jwtx.AMROAuth
	}
	return jwtx.AMRPassword
}
