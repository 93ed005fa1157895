package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrInvalidCode, "invalid_code"},
		{fmt.Errorf("wrapped: %w", ErrNotEnabled), "not_enabled"},
		{&OwnershipError{Reason: "x"}, "ownership_mismatch"},
		{storageErr("save", store.ErrConflict), "storage_failure"},
		{providerErr(errors.New("timeout")), "provider_failure"},
		{ErrAccountNotFoundOr2FADisabled, "account_not_found_or_2fa_disabled"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestStorageErrKeepsCause(t *testing.T) {
	t.Parallel()

	err := storageErr("save", store.ErrConflict)
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, store.ErrConflict)
	require.Contains(t, err.Error(), "save")
}
