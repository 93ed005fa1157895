package http

import (
	"net/http"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/service"
	"github.com/aussiebroadwan/twofa/pkg/authsdk"
	"github.com/aussiebroadwan/twofa/pkg/httpx"
)

// TwoFactorHandler serves the signed-in account's 2FA settings.
type TwoFactorHandler struct {
	SetupService      *service.SetupService
	BackupCodeService *service.BackupCodeService
}

// HandleStatus handles GET /v1/2fa/status
//
//	@Summary		Get 2FA status
//	@Description	Reports whether 2FA is enabled and how many backup codes remain.
//	@Tags			2FA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TwoFactorStatusResponse	"Current 2FA status"
//	@Failure		401	{object}	authsdk.ErrorResponse			"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.ErrorResponse			"Account not found"
//	@Failure		500	{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/v1/2fa/status [get].
func (h *TwoFactorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	st, err := h.SetupService.Status(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.TwoFactorStatusResponse{
		Enabled:              st.Enabled,
		BackupCodesRemaining: st.BackupCodesRemaining,
		LastChangedAt:        st.LastChangedAt,
	})
}

// HandleBegin handles POST /v1/2fa/setup
//
//	@Summary		Begin 2FA setup
//	@Description	Generates a TOTP secret and backup codes after re-checking the account's credential. Nothing is stored until the setup token is confirmed.
//	@Tags			2FA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.Credential		true	"Password or OAuth access token"
//	@Success		200		{object}	authsdk.SetupResponse	"Secret, provisioning URI and backup codes (shown once)"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing credential"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credential or access token"
//	@Failure		409		{object}	authsdk.ErrorResponse	"2FA already enabled"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/2fa/setup [post].
func (h *TwoFactorHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	accountID, cred, ok := credentialRequest(w, r)
	if !ok {
		return
	}

	res, err := h.SetupService.Begin(r.Context(), accountID, cred)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SetupResponse{
		Secret:          res.Secret,
		ProvisioningURI: res.ProvisioningURI,
		QRCode:          res.QRCode,
		BackupCodes:     res.BackupCodes,
		SetupToken:      res.SetupToken,
		ExpiresAt:       res.ExpiresAt,
	})
}

// HandleConfirm handles POST /v1/2fa/setup/confirm
//
//	@Summary		Confirm 2FA setup
//	@Description	Enables 2FA once a code from the new authenticator checks out against the setup token's secret.
//	@Tags			2FA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.ConfirmSetupRequest	true	"Setup token and TOTP code"
//	@Success		204		"2FA enabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or expired token or code"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Setup token issued to another account"
//	@Failure		409		{object}	authsdk.ErrorResponse	"2FA already enabled"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/2fa/setup/confirm [post].
func (h *TwoFactorHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}
	var req authsdk.ConfirmSetupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.SetupToken == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.SetupService.Confirm(r.Context(), accountID, req.SetupToken, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles POST /v1/2fa/disable
//
//	@Summary		Disable 2FA
//	@Description	Turns 2FA off and discards the secret and backup codes after re-checking the account's credential.
//	@Tags			2FA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.Credential	true	"Password or OAuth access token"
//	@Success		204		"2FA disabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Missing credential"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credential or access token"
//	@Failure		409		{object}	authsdk.ErrorResponse	"2FA not enabled"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	accountID, cred, ok := credentialRequest(w, r)
	if !ok {
		return
	}

	if err := h.SetupService.Disable(r.Context(), accountID, cred); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerate handles POST /v1/2fa/backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces every backup code with a fresh set after re-checking the account's credential. Old codes stop working immediately.
//	@Tags			2FA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.Credential			true	"Password or OAuth access token"
//	@Success		200		{object}	authsdk.BackupCodesResponse	"New backup codes (shown once)"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Missing credential"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid credential or access token"
//	@Failure		409		{object}	authsdk.ErrorResponse		"2FA not enabled"
//	@Failure		500		{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/2fa/backup-codes [post].
func (h *TwoFactorHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	accountID, cred, ok := credentialRequest(w, r)
	if !ok {
		return
	}

	codes, err := h.BackupCodeService.Regenerate(r.Context(), accountID, cred)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}

// credentialRequest reads the authenticated account and a Credential body,
// writing the error response itself when either is missing.
func credentialRequest(w http.ResponseWriter, r *http.Request) (string, domain.Credential, bool) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return "", domain.Credential{}, false
	}
	var req authsdk.Credential
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return "", domain.Credential{}, false
	}
	return accountID, domain.Credential{
		Password:         req.Password,
		OAuthAccessToken: req.OAuthAccessToken,
	}, true
}
