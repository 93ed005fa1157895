package authsdk

import (
	"time"

	"github.com/aussiebroadwan/twofa/pkg/jwtx"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the error body every endpoint returns.
// Client code should use the APIError type from errors.go instead.
type ErrorResponse struct {
	// Error is the machine readable error code (e.g., "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Credential Types
// ============================================================================

// Credential proves account ownership for privileged 2FA changes. Local
// accounts send Password, OAuth accounts send OAuthAccessToken.
type Credential struct {
	Password         string `json:"password,omitempty"`
	OAuthAccessToken string `json:"oauth_access_token,omitempty"`
}

// OAuthTokens are provider tokens captured at OAuth sign-in.
type OAuthTokens struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	UserInfo     map[string]any `json:"user_info,omitempty"`
}

// ============================================================================
// Login Types
// ============================================================================

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthLoginRequest is the body of POST /v1/login/oauth. The access token
// must have been issued to the account's provider identity.
type OAuthLoginRequest struct {
	AccountID string      `json:"account_id"`
	Tokens    OAuthTokens `json:"tokens"`
}

// TwoFactorLoginRequest is the body of POST /v1/login/2fa. Code is either a
// 6 digit TOTP code or an 8 character backup code.
type TwoFactorLoginRequest struct {
	TempToken string `json:"temp_token"`
	Code      string `json:"code"`
}

// TwoFactorChallengeResponse is the 409 body a login endpoint returns when
// the account needs a second factor. Send TempToken to POST /v1/login/2fa.
type TwoFactorChallengeResponse struct {
	ErrorResponse
	TempToken string    `json:"temp_token"`
	ExpiresAt time.Time `json:"expires_at"`
	Methods   []string  `json:"methods"`
}

// SessionResponse is returned once sign-in is complete.
type SessionResponse struct {
	// AccessToken is an EdDSA signed JWT, verifiable with the JWKS endpoint
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	AccountID string   `json:"account_id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	AMR       []string `json:"amr"`

	// OAuthTokens carries the provider tokens back for OAuth accounts
	OAuthTokens *OAuthTokens `json:"oauth_tokens,omitempty"`
}

// ============================================================================
// Two-Factor Types
// ============================================================================

// TwoFactorStatusResponse is returned from GET /v1/2fa/status.
type TwoFactorStatusResponse struct {
	Enabled              bool       `json:"enabled"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
	LastChangedAt        *time.Time `json:"last_changed_at,omitempty"`
}

// SetupResponse is returned from POST /v1/2fa/setup. The secret and backup
// codes are shown once and cannot be fetched again.
type SetupResponse struct {
	Secret          string    `json:"secret"`
	ProvisioningURI string    `json:"provisioning_uri"`
	QRCode          string    `json:"qr_code,omitempty"`
	BackupCodes     []string  `json:"backup_codes"`
	SetupToken      string    `json:"setup_token"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// ConfirmSetupRequest is the body of POST /v1/2fa/setup/confirm.
type ConfirmSetupRequest struct {
	SetupToken string `json:"setup_token"`
	Code       string `json:"code"`
}

// BackupCodesResponse contains freshly generated backup codes (shown once).
type BackupCodesResponse struct {
	Codes []string `json:"codes"`
}

// DebugTokensResponse lists redacted live tokens. Only served in dev.
type DebugTokensResponse struct {
	TempLogin []DebugToken `json:"temp_login"`
	Setup     []DebugToken `json:"setup"`
}

// DebugToken identifies its entry by the SHA-256 fingerprint of the bearer
// token, which is what the Redis backend indexes by.
type DebugToken struct {
	Fingerprint string    `json:"fingerprint"`
	AccountID   string    `json:"account_id"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database   string `json:"database"`
	Signer     string `json:"signer"`
	TokenStore string `json:"token_store"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the public keys that verify session tokens.
type JWKSResponse jwtx.JWKS
