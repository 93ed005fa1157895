package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeMissingCredential      = "missing_credential"
	ErrorCodeInvalidCredentials     = "invalid_credentials"
	ErrorCodeOwnershipMismatch      = "ownership_mismatch"
	ErrorCodeUnsupportedAccountKind = "unsupported_account_kind"
	ErrorCodeInvalidTokenOrCode     = "invalid_token_or_code"
	ErrorCodeTokenAccountMismatch   = "token_account_mismatch"
	ErrorCodeEmailMismatch          = "email_mismatch"
	ErrorCodeNotEnabled             = "two_factor_not_enabled"
	ErrorCodeAlreadyEnabled         = "two_factor_already_enabled"
	ErrorCodeAccountNotFound        = "account_not_found"
	ErrorCodeProviderError          = "provider_error"
	ErrorCodeServerError            = "server_error"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeTwoFactorRequired      = "two_factor_required"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is the error body shared by the server (to write responses) and
// the client (to report them).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code so callers can errors.Is against the predefined values.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrMissingCredential = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMissingCredential,
		Description: "a password or oauth access token is required",
	}

	// ErrInvalidCredentials covers wrong passwords and unknown accounts alike.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	ErrOwnershipMismatch = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeOwnershipMismatch,
		Description: "the oauth access token does not belong to this account",
	}

	ErrUnsupportedAccountKind = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeUnsupportedAccountKind,
		Description: "account kind does not support this operation",
	}

	// ErrInvalidTokenOrCode is returned for unknown, expired or used temp and
	// setup tokens as well as wrong codes, so a caller can't tell them apart.
	ErrInvalidTokenOrCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidTokenOrCode,
		Description: "the token or code is invalid or has expired",
	}

	ErrTokenAccountMismatch = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeTokenAccountMismatch,
		Description: "the setup token was issued to another account",
	}

	ErrEmailMismatch = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeEmailMismatch,
		Description: "account details changed since sign-in started, sign in again",
	}

	ErrNotEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeNotEnabled,
		Description: "two-factor authentication is not enabled",
	}

	ErrAlreadyEnabled = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeAlreadyEnabled,
		Description: "two-factor authentication is already enabled",
	}

	ErrAccountNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeAccountNotFound,
		Description: "account not found",
	}

	ErrProviderError = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeProviderError,
		Description: "the identity provider could not be reached",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrMethodNotAllowed = &APIError{
		StatusCode:  http.StatusMethodNotAllowed,
		Code:        ErrorCodeInvalidRequest,
		Description: "method not allowed",
	}

	// ErrInvalidToken is returned when the session token is missing, invalid or expired.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid or expired",
	}
)

// ============================================================================
// Two-Factor Challenge
// ============================================================================

// TwoFactorRequiredError is returned from the login endpoints when the
// account has 2FA enabled. It's sent as 409 Conflict: the credentials were
// right but sign-in needs another step.
type TwoFactorRequiredError struct {
	TempToken string    `json:"temp_token"`
	ExpiresAt time.Time `json:"expires_at"`
	Methods   []string  `json:"methods"`
}

func (e *TwoFactorRequiredError) Error() string {
	return fmt.Sprintf("two-factor authentication required: methods=%v", e.Methods)
}

func (e *TwoFactorRequiredError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusConflict, TwoFactorChallengeResponse{
		ErrorResponse: ErrorResponse{
			Error:            ErrorCodeTwoFactorRequired,
			ErrorDescription: "a second factor is required to complete sign-in",
		},
		TempToken: e.TempToken,
		ExpiresAt: e.ExpiresAt,
		Methods:   e.Methods,
	})
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into *TwoFactorRequiredError
// or *APIError. It returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusConflict {
		var challenge TwoFactorChallengeResponse
		if err := json.Unmarshal(body, &challenge); err == nil &&
			challenge.Error == ErrorCodeTwoFactorRequired && challenge.TempToken != "" {
			return &TwoFactorRequiredError{
				TempToken: challenge.TempToken,
				ExpiresAt: challenge.ExpiresAt,
				Methods:   challenge.Methods,
			}
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
