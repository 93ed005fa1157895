package domain

import "time"

// 2FA methods accepted on a login challenge.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

type TwoFactorStatus struct {
	Enabled              bool
	BackupCodesRemaining int
	LastChangedAt        *time.Time
}

// SetupBegin is handed back once when setup starts. Nothing in it can be
// recovered later.
type SetupBegin struct {
	Secret          string
	ProvisioningURI string
	QRCode          string // data URL, empty when no renderer is configured
	BackupCodes     []string
	SetupToken      string
	ExpiresAt       time.Time
}

// LoginChallenge is returned when sign-in needs a second factor.
type LoginChallenge struct {
	TempToken string
	ExpiresAt time.Time
}

// LoginResult identifies a fully authenticated account, ready for session issuance.
type LoginResult struct {
	AccountID   string
	Email       string
	Name        string
	Kind        AccountKind
	OAuthTokens *OAuthTokens
	Methods     []string // e.g. ["pwd","otp"]
}

// SignIn is the outcome of primary authentication: exactly one of Result or
// Challenge is set.
type SignIn struct {
	Result    *LoginResult
	Challenge *LoginChallenge
}
