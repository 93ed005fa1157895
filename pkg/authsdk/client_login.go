package authsdk

import (
	"context"
	"net/http"
)

// Login signs a local account in. When the account has 2FA enabled the
// error is a *TwoFactorRequiredError; pass its TempToken to VerifyTwoFactor.
func (c *SDKClient) Login(ctx context.Context, email, password string) (*SessionResponse, error) {
	var out SessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/login", "",
		LoginRequest{Email: email, Password: password}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginOAuth signs an OAuth account in with tokens the caller already
// obtained from the provider. 2FA is reported the same way as Login.
func (c *SDKClient) LoginOAuth(ctx context.Context, accountID string, tokens OAuthTokens) (*SessionResponse, error) {
	var out SessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/login/oauth", "",
		OAuthLoginRequest{AccountID: accountID, Tokens: tokens}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTwoFactor completes a sign-in challenge with a TOTP or backup code.
func (c *SDKClient) VerifyTwoFactor(ctx context.Context, tempToken, code string) (*SessionResponse, error) {
	var out SessionResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/login/2fa", "",
		TwoFactorLoginRequest{TempToken: tempToken, Code: code}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
