package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BackupCodeBytes is the random entropy behind each backup code (8 hex chars).
	BackupCodeBytes = 4

	// BackupCodeLength is the length of an encoded backup code.
	BackupCodeLength = BackupCodeBytes * 2

	// MinBackupCodeCost is the lowest bcrypt cost accepted for backup codes.
	MinBackupCodeCost = 10
)

// ErrBackupCodeMismatch is returned by CompareBackupCode when the candidate
// does not match the stored hash.
var ErrBackupCodeMismatch = errors.New("backup code does not match")

// GenerateBackupCode returns a lowercase hex backup code built from
// BackupCodeBytes of crypto/rand output.
func GenerateBackupCode() (string, error) {
	buf := make([]byte, BackupCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate backup code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NormalizeBackupCode trims whitespace and dashes and lowercases the code so
// "AB12-CD34" and "ab12cd34" are the same credential.
func NormalizeBackupCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ToLower(code)
}

// HashBackupCode hashes a backup code with bcrypt. Costs below
// MinBackupCodeCost are raised to it.
func HashBackupCode(code string, cost int) (string, error) {
	cost = max(cost, MinBackupCodeCost)
	hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeBackupCode(code)), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash backup code: %w", err)
	}
	return string(hash), nil
}

// CompareBackupCode reports whether code matches the bcrypt hash.
// It returns ErrBackupCodeMismatch for a wrong code and another error when
// the hash itself is malformed.
func CompareBackupCode(code, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(NormalizeBackupCode(code)))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrBackupCodeMismatch
	}
	return err
}
