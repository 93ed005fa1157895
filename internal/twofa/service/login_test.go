package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestLoginOAuthChallenge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.oauthAccount(t, "grace@example.com", "grace-token")
	secret, _ := h.enable2FA(t, acct.ID, 1)

	tokens := &domain.OAuthTokens{
		AccessToken:  "grace-token",
		RefreshToken: "grace-refresh",
		UserInfo:     map[string]any{"sub": acct.OAuthSubject},
	}
	ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{
		AccountID:   acct.ID,
		Email:       acct.Email,
		Kind:        domain.KindOAuth,
		OAuthTokens: tokens,
	})
	require.NoError(t, err)
	require.NotEmpty(t, ch.TempToken)
	require.Equal(t, h.Clock.Now().Add(5*time.Minute), ch.ExpiresAt)

	_, err = h.Login.Verify(ctx, h.wrongCode(t, secret), ch.TempToken)
	require.ErrorIs(t, err, ErrInvalidCode)

	res, err := h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
	require.NoError(t, err)
	require.Equal(t, acct.ID, res.AccountID)
	require.Equal(t, "Grace Hopper", res.Name)
	require.Equal(t, domain.KindOAuth, res.Kind)
	require.Equal(t, tokens, res.OAuthTokens)
	require.Equal(t, []string{jwtx.AMROAuth, jwtx.AMROTP, jwtx.AMRMFA}, res.Methods)

	_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
	require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestLoginBackupCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	_, codes := h.enable2FA(t, acct.ID, 3)

	challenge := func() string {
		ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: acct.Email, Kind: domain.KindLocal})
		require.NoError(t, err)
		return ch.TempToken
	}

	res, err := h.Login.Verify(ctx, codes[1], challenge())
	require.NoError(t, err)
	require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMRMFA}, res.Methods)
	require.Nil(t, res.OAuthTokens)

	remaining := h.reload(t, acct.ID).Security.TwoFactorBackupCodes
	require.Len(t, remaining, 2)

	tmp := challenge()
	_, err = h.Login.Verify(ctx, codes[1], tmp)
	require.ErrorIs(t, err, ErrInvalidCode)
	require.Len(t, h.reload(t, acct.ID).Security.TwoFactorBackupCodes, 2)

	// A failed attempt leaves the challenge usable.
	_, err = h.Login.Verify(ctx, codes[2], tmp)
	require.NoError(t, err)
	require.Len(t, h.reload(t, acct.ID).Security.TwoFactorBackupCodes, 1)
}

func TestLoginVerifyFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	secret, _ := h.enable2FA(t, acct.ID, 1)

	t.Run("unknown token", func(t *testing.T) {
		_, err := h.Login.Verify(ctx, "123456", "no-such-token")
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("invalid account kind", func(t *testing.T) {
		_, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: acct.Email, Kind: "saml"})
		require.ErrorIs(t, err, ErrUnsupportedAccountKind)
	})

	t.Run("email changed since challenge", func(t *testing.T) {
		ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: "old@example.com", Kind: domain.KindLocal})
		require.NoError(t, err)

		_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
		require.ErrorIs(t, err, ErrEmailMismatch)

		_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("email compared case-insensitively", func(t *testing.T) {
		ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: " ADA@Example.com", Kind: domain.KindLocal})
		require.NoError(t, err)
		_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
		require.NoError(t, err)
	})

	t.Run("account deleted", func(t *testing.T) {
		ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: "01GONE", Email: acct.Email, Kind: domain.KindLocal})
		require.NoError(t, err)
		_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
		require.ErrorIs(t, err, ErrAccountNotFoundOr2FADisabled)
	})

	t.Run("expired challenge", func(t *testing.T) {
		ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: acct.Email, Kind: domain.KindLocal})
		require.NoError(t, err)
		h.Clock.Advance(5*time.Minute + time.Second)
		_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("2fa disabled after challenge", func(t *testing.T) {
		ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: acct.Email, Kind: domain.KindLocal})
		require.NoError(t, err)
		require.NoError(t, h.Setup.Disable(ctx, acct.ID, domain.Credential{Password: testPassword}))

		_, err = h.Login.Verify(ctx, h.currentCode(t, secret), ch.TempToken)
		require.ErrorIs(t, err, ErrAccountNotFoundOr2FADisabled)
	})
}

func TestLoginVerifyIsSingleUseUnderRace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	secret, _ := h.enable2FA(t, acct.ID, 1)

	ch, err := h.Login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: acct.Email, Kind: domain.KindLocal})
	require.NoError(t, err)
	code := h.currentCode(t, secret)

	const n = 16
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.Login.Verify(ctx, code, ch.TempToken)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}
	require.Equal(t, 1, ok)
}

// racingStore runs afterRead once, right after the first account read, to
// simulate a concurrent writer landing between load and save.
type racingStore struct {
	store.Store
	accounts *racingAccounts
}

func (s racingStore) Accounts() store.Accounts { return s.accounts }

type racingAccounts struct {
	store.Accounts
	once      sync.Once
	afterRead func()
}

func (a *racingAccounts) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	acct, err := a.Accounts.GetAccountByID(ctx, id)
	a.once.Do(a.afterRead)
	return acct, err
}

func TestLoginBackupCodeSurvivesConcurrentWrite(t *testing.T) {
	tests := []struct {
		name         string
		spentByOther int // index of the code the concurrent writer spends
		wantErr      error
		remaining    int
	}{
		{name: "other code spent", spentByOther: 0, remaining: 1},
		{name: "same code spent", spentByOther: 1, wantErr: ErrInvalidCode, remaining: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			acct := h.localAccount(t, "ada@example.com")
			_, codes := h.enable2FA(t, acct.ID, 3)

			login := *h.Login
			login.Store = racingStore{
				Store: h.Store,
				accounts: &racingAccounts{
					Accounts: h.Store.Accounts(),
					afterRead: func() {
						fresh := h.reload(t, acct.ID)
						ok, err := h.BackupCodes.Consume(ctx, &fresh, codes[tt.spentByOther])
						require.NoError(t, err)
						require.True(t, ok)
					},
				},
			}

			ch, err := login.IssueChallenge(ctx, ChallengeRequest{AccountID: acct.ID, Email: acct.Email, Kind: domain.KindLocal})
			require.NoError(t, err)

			res, err := login.Verify(ctx, codes[1], ch.TempToken)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, acct.ID, res.AccountID)
				require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMRMFA}, res.Methods)
			}
			require.Len(t, h.reload(t, acct.ID).Security.TwoFactorBackupCodes, tt.remaining)
		})
	}
}
