package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/twofa/internal/twofa/service"
	"github.com/aussiebroadwan/twofa/pkg/authsdk"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

var serviceErrors = []struct {
	err  error
	resp *authsdk.APIError
}{
	// Token and code failures share one response.
	{service.ErrInvalidOrExpiredToken, authsdk.ErrInvalidTokenOrCode},
	{service.ErrInvalidCode, authsdk.ErrInvalidTokenOrCode},
	{service.ErrAccountNotFoundOr2FADisabled, authsdk.ErrInvalidTokenOrCode},

	{service.ErrMissingCredential, authsdk.ErrMissingCredential},
	{service.ErrInvalidCredential, authsdk.ErrInvalidCredentials},
	{service.ErrOwnershipMismatch, authsdk.ErrOwnershipMismatch},
	{service.ErrUnsupportedAccountKind, authsdk.ErrUnsupportedAccountKind},
	{service.ErrTokenAccountMismatch, authsdk.ErrTokenAccountMismatch},
	{service.ErrEmailMismatch, authsdk.ErrEmailMismatch},
	{service.ErrNotEnabled, authsdk.ErrNotEnabled},
	{service.ErrAlreadyEnabled, authsdk.ErrAlreadyEnabled},
	{service.ErrAccountNotFound, authsdk.ErrAccountNotFound},
	{service.ErrProvider, authsdk.ErrProviderError},
}

// writeServiceError maps a service error onto its API response. Storage
// and unexpected failures are logged and reported as server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.resp.StatusCode >= http.StatusInternalServerError {
				log.Error("request failed", "kind", service.Kind(err), "err", err)
			} else {
				log.Info("request rejected", "kind", service.Kind(err))
			}
			m.resp.WriteError(w)
			return
		}
	}

	log.Error("request failed", "kind", service.Kind(err), "err", err)
	authsdk.ErrServerError.WriteError(w)
}
