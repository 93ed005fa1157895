/*
Package authsdk is a Go client for the twofa service.

# SDKClient vs Session

SDKClient covers the public endpoints: sign-in, the 2FA challenge, health
checks and JWKS. A successful sign-in returns a SessionResponse whose access
token backs a Session for the account's own 2FA settings.

	client := authsdk.NewSDKClient("https://auth.example.com")

	res, err := client.Login(ctx, "ada@example.com", password)
	var challenge *authsdk.TwoFactorRequiredError
	if errors.As(err, &challenge) {
		res, err = client.VerifyTwoFactor(ctx, challenge.TempToken, code)
	}
	if err != nil {
		return err
	}

	session := client.NewSession(res.AccessToken)
	setup, err := session.BeginSetup(ctx, authsdk.Credential{Password: password})

# Errors

Failures come back as *APIError with a stable Code. Compare with errors.Is
against the predefined values:

	if errors.Is(err, authsdk.ErrInvalidTokenOrCode) {
		// wrong code, or the challenge expired
	}

Unknown, expired and already used tokens share ErrInvalidTokenOrCode with
wrong codes on purpose.
*/
package authsdk
