package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/stretchr/testify/require"
)

func TestRegenerateBackupCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	cred := domain.Credential{Password: testPassword}

	_, err := h.BackupCodes.Regenerate(ctx, acct.ID, cred)
	require.ErrorIs(t, err, ErrNotEnabled)

	_, old := h.enable2FA(t, acct.ID, 2)

	_, err = h.BackupCodes.Regenerate(ctx, acct.ID, domain.Credential{Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredential)

	codes, err := h.BackupCodes.Regenerate(ctx, acct.ID, cred)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	updated := h.reload(t, acct.ID)
	require.Len(t, updated.Security.TwoFactorBackupCodes, 10)
	require.Equal(t, -1, h.BackupCodes.Match(updated, old[0]))
	require.GreaterOrEqual(t, h.BackupCodes.Match(updated, codes[9]), 0)
}

func TestRegenerateAfterDisable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	cred := domain.Credential{Password: testPassword}
	h.enable2FA(t, acct.ID, 1)

	require.NoError(t, h.Setup.Disable(ctx, acct.ID, cred))
	_, err := h.BackupCodes.Regenerate(ctx, acct.ID, cred)
	require.ErrorIs(t, err, ErrNotEnabled)
}

func TestConsumeBackupCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	_, codes := h.enable2FA(t, acct.ID, 3)

	a := h.reload(t, acct.ID)
	before := a.Version

	ok, err := h.BackupCodes.Consume(ctx, &a, "zzzzzzzz")
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, a.Security.TwoFactorBackupCodes, 3)
	require.Equal(t, before, a.Version)

	ok, err = h.BackupCodes.Consume(ctx, &a, codes[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, a.Security.TwoFactorBackupCodes, 2)
	require.Len(t, h.reload(t, acct.ID).Security.TwoFactorBackupCodes, 2)

	ok, err = h.BackupCodes.Consume(ctx, &a, codes[0])
	require.NoError(t, err)
	require.False(t, ok)

	t.Run("stale copy cannot spend twice", func(t *testing.T) {
		first := h.reload(t, acct.ID)
		second := first

		ok, err := h.BackupCodes.Consume(ctx, &first, codes[1])
		require.NoError(t, err)
		require.True(t, ok)

		_, err = h.BackupCodes.Consume(ctx, &second, codes[1])
		require.ErrorIs(t, err, ErrInvalidCode)
		require.Len(t, h.reload(t, acct.ID).Security.TwoFactorBackupCodes, 1)
	})
}

func TestConsumeStaleCopyDifferentCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.localAccount(t, "ada@example.com")
	_, codes := h.enable2FA(t, acct.ID, 3)

	first := h.reload(t, acct.ID)
	second := first

	ok, err := h.BackupCodes.Consume(ctx, &first, codes[0])
	require.NoError(t, err)
	require.True(t, ok)

	// second is a version behind but its code is still unspent.
	ok, err = h.BackupCodes.Consume(ctx, &second, codes[2])
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, second.Security.TwoFactorBackupCodes, 1)

	stored := h.reload(t, acct.ID)
	require.Len(t, stored.Security.TwoFactorBackupCodes, 1)
	require.Equal(t, 0, h.BackupCodes.Match(stored, codes[1]))
	require.Equal(t, stored.Version, second.Version)
}

func TestMatchSkipsNonBackupInput(t *testing.T) {
	h := newHarness(t)
	acct := h.localAccount(t, "ada@example.com")
	h.enable2FA(t, acct.ID, 1)

	a := h.reload(t, acct.ID)
	require.Equal(t, -1, h.BackupCodes.Match(a, "123456"))
	require.Equal(t, -1, h.BackupCodes.Match(a, ""))
}
