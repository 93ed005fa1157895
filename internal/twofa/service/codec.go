package service

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	secretSize      = 20 // 160-bit TOTP seed
	totpPeriod      = 30
	totpSkew        = 1 // accept one step either side
	backupCodeCount = 10
)

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Codec generates and checks 2FA secret material: TOTP seeds and codes,
// provisioning URIs and backup codes.
type Codec struct {
	Issuer string

	// BackupCodeCost is the bcrypt cost; values below cryptox.MinBackupCodeCost are raised.
	BackupCodeCost int

	Now func() time.Time
}

// NewCodec returns a Codec on the wall clock.
func NewCodec(issuer string, backupCodeCost int) *Codec {
	return &Codec{Issuer: issuer, BackupCodeCost: backupCodeCost, Now: time.Now}
}

func (c *Codec) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a fresh base32 TOTP seed.
func (c *Codec) GenerateSecret() (string, error) {
	buf := make([]byte, secretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return b32NoPadding.EncodeToString(buf), nil
}

// GenerateCode returns the 6-digit TOTP code for secret at t.
func (c *Codec) GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, c.validateOpts())
}

// VerifyCode checks code against secret at the current time, allowing one
// step of drift either way.
func (c *Codec) VerifyCode(code, secret string) bool {
	return c.VerifyCodeAt(code, secret, nowOr(c.Now))
}

// VerifyCodeAt is VerifyCode at an explicit time.
func (c *Codec) VerifyCodeAt(code, secret string, t time.Time) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, t, c.validateOpts())
	return err == nil && ok
}

// ProvisioningURI builds the otpauth:// URI an authenticator app scans.
func (c *Codec) ProvisioningURI(accountLabel, secret string) (string, error) {
	raw, err := b32NoPadding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("invalid TOTP secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      c.Issuer,
		AccountName: accountLabel,
		Period:      totpPeriod,
		SecretSize:  uint(len(raw)),
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build provisioning URI: %w", err)
	}
	return key.URL(), nil
}

// GenerateBackupCodes returns n distinct plaintext backup codes.
func (c *Codec) GenerateBackupCodes(n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// HashCode bcrypt-hashes a backup code for storage.
func (c *Codec) HashCode(code string) (string, error) {
	return cryptox.HashBackupCode(code, c.BackupCodeCost)
}

// VerifyHash reports whether code matches a stored backup code hash.
func (c *Codec) VerifyHash(code, hash string) bool {
	return cryptox.CompareBackupCode(code, hash) == nil
}

// newBackupCodes generates a batch and its hashes, index aligned.
func (c *Codec) newBackupCodes() (plain, hashes []string, err error) {
	plain, err = c.GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, nil, err
	}
	hashes = make([]string, len(plain))
	for i, code := range plain {
		if hashes[i], err = c.HashCode(code); err != nil {
			return nil, nil, err
		}
	}
	return plain, hashes, nil
}
