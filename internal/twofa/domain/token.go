package domain

import "time"

// OAuthTokens are the provider tokens captured at OAuth sign-in and carried
// through a 2FA challenge so the session can be minted without re-deriving them.
type OAuthTokens struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	UserInfo     map[string]any `json:"user_info,omitempty"`
}

// TempLoginToken bridges a completed primary sign-in and its 2FA challenge.
type TempLoginToken struct {
	Token       string       `json:"-"` // the store key; never serialized
	AccountID   string       `json:"account_id"`
	Email       string       `json:"email"`
	Kind        AccountKind  `json:"kind"`
	OAuthTokens *OAuthTokens `json:"oauth_tokens,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Redacted returns a copy safe for diagnostics.
func (t TempLoginToken) Redacted() TempLoginToken {
	t.Token = redact(t.Token)
	if t.OAuthTokens != nil {
		t.OAuthTokens = &OAuthTokens{AccessToken: redact(t.OAuthTokens.AccessToken)}
	}
	return t
}

// SetupToken binds a freshly generated TOTP secret to its confirmation step.
type SetupToken struct {
	Token     string      `json:"-"` // the store key; never serialized
	AccountID string      `json:"account_id"`
	Secret    string      `json:"secret"`
	Kind      AccountKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Redacted returns a copy safe for diagnostics.
func (t SetupToken) Redacted() SetupToken {
	t.Token = redact(t.Token)
	t.Secret = ""
	return t
}

func redact(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:6] + "***"
}
