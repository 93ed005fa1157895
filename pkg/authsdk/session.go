package authsdk

import (
	"context"
	"net/http"
)

// Session makes calls on behalf of a signed-in account.
type Session struct {
	client      *SDKClient
	accessToken string
}

// AccessToken returns the bearer token this session sends.
func (s *Session) AccessToken() string { return s.accessToken }

// TwoFactorStatus reports whether 2FA is on and how many backup codes remain.
func (s *Session) TwoFactorStatus(ctx context.Context) (*TwoFactorStatusResponse, error) {
	var out TwoFactorStatusResponse
	if err := s.client.doJSON(ctx, http.MethodGet, "/v1/2fa/status", s.accessToken, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// BeginSetup starts 2FA setup. The returned secret and backup codes are
// shown once.
func (s *Session) BeginSetup(ctx context.Context, cred Credential) (*SetupResponse, error) {
	var out SetupResponse
	if err := s.client.doJSON(ctx, http.MethodPost, "/v1/2fa/setup", s.accessToken, cred, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmSetup enables 2FA with a code from the authenticator app.
func (s *Session) ConfirmSetup(ctx context.Context, setupToken, code string) error {
	return s.client.doJSON(ctx, http.MethodPost, "/v1/2fa/setup/confirm", s.accessToken,
		ConfirmSetupRequest{SetupToken: setupToken, Code: code}, nil, http.StatusNoContent)
}

// DisableTwoFactor turns 2FA off and discards the secret and backup codes.
func (s *Session) DisableTwoFactor(ctx context.Context, cred Credential) error {
	return s.client.doJSON(ctx, http.MethodPost, "/v1/2fa/disable", s.accessToken, cred, nil, http.StatusNoContent)
}

// RegenerateBackupCodes replaces every backup code with a fresh set.
func (s *Session) RegenerateBackupCodes(ctx context.Context, cred Credential) (*BackupCodesResponse, error) {
	var out BackupCodesResponse
	if err := s.client.doJSON(ctx, http.MethodPost, "/v1/2fa/backup-codes", s.accessToken, cred, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
