package http

import (
	"net/http"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/service"
	"github.com/aussiebroadwan/twofa/pkg/authsdk"
	"github.com/aussiebroadwan/twofa/pkg/httpx"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
)

// challengeMethods are the second factors a temp token accepts.
var challengeMethods = []string{domain.MethodTOTP, domain.MethodBackupCode}

// LoginHandler serves the sign-in endpoints.
type LoginHandler struct {
	SignInService *service.SignInService
	LoginService  *service.LoginService
	Sessions      *SessionIssuer
}

// HandlePassword handles POST /v1/login
//
//	@Summary		Sign in with email and password
//	@Description	Checks a local account's password. Accounts with 2FA enabled get a 409 carrying a temp token for POST /v1/login/2fa instead of a session.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest				true	"Email and password"
//	@Success		200		{object}	authsdk.SessionResponse				"Session issued"
//	@Failure		400		{object}	authsdk.ErrorResponse				"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse				"Invalid credentials"
//	@Failure		409		{object}	authsdk.TwoFactorChallengeResponse	"Second factor required"
//	@Failure		429		{object}	authsdk.ErrorResponse				"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse				"Internal server error"
//	@Router			/v1/login [post].
func (h *LoginHandler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.SignInService.PasswordLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSignIn(w, r, res)
}

// HandleOAuth handles POST /v1/login/oauth
//
//	@Summary		Sign in with provider tokens
//	@Description	Completes sign-in for an OAuth account once the provider flow is done. The access token must belong to the account's provider identity.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.OAuthLoginRequest			true	"Account ID and provider tokens"
//	@Success		200		{object}	authsdk.SessionResponse				"Session issued"
//	@Failure		400		{object}	authsdk.ErrorResponse				"Malformed request or not an OAuth account"
//	@Failure		401		{object}	authsdk.ErrorResponse				"Token does not belong to this account"
//	@Failure		404		{object}	authsdk.ErrorResponse				"Account not found"
//	@Failure		409		{object}	authsdk.TwoFactorChallengeResponse	"Second factor required"
//	@Failure		429		{object}	authsdk.ErrorResponse				"Rate limit exceeded"
//	@Failure		502		{object}	authsdk.ErrorResponse				"Identity provider unreachable"
//	@Router			/v1/login/oauth [post].
func (h *LoginHandler) HandleOAuth(w http.ResponseWriter, r *http.Request) {
	var req authsdk.OAuthLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.AccountID == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.SignInService.OAuthLogin(r.Context(), req.AccountID, domain.OAuthTokens{
		AccessToken:  req.Tokens.AccessToken,
		RefreshToken: req.Tokens.RefreshToken,
		UserInfo:     req.Tokens.UserInfo,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSignIn(w, r, res)
}

// HandleTwoFactor handles POST /v1/login/2fa
//
//	@Summary		Complete sign-in with a second factor
//	@Description	Redeems a temp token with a TOTP code or a backup code. A wrong code leaves the temp token usable until it expires; success consumes it.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorLoginRequest	true	"Temp token and code"
//	@Success		200		{object}	authsdk.SessionResponse			"Session issued"
//	@Failure		400		{object}	authsdk.ErrorResponse			"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid or expired token or code"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/v1/login/2fa [post].
func (h *LoginHandler) HandleTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TwoFactorLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.TempToken == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.LoginService.Verify(r.Context(), req.Code, req.TempToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeSession(w, r, res)
}

func (h *LoginHandler) writeSignIn(w http.ResponseWriter, r *http.Request, res domain.SignIn) {
	if res.Challenge != nil {
		(&authsdk.TwoFactorRequiredError{
			TempToken: res.Challenge.TempToken,
			ExpiresAt: res.Challenge.ExpiresAt,
			Methods:   challengeMethods,
		}).WriteError(w)
		return
	}
	h.writeSession(w, r, *res.Result)
}

func (h *LoginHandler) writeSession(w http.ResponseWriter, r *http.Request, res domain.LoginResult) {
	out, err := h.Sessions.Issue(res)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to sign session", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
