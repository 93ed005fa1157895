package http

import (
	"log/slog"
	"net/http"
	"time"

	_ "github.com/aussiebroadwan/twofa/api/twofa" // Swagger docs
	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/internal/twofa/service"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/aussiebroadwan/twofa/pkg/httpx"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits groups the profiles applied per route class.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Limits   RateLimits
	Sessions *SessionIssuer

	SignInService     *service.SignInService
	LoginService      *service.LoginService
	SetupService      *service.SetupService
	BackupCodeService *service.BackupCodeService

	TempTokens  tokenstore.Store[domain.TempLoginToken]
	SetupTokens tokenstore.Store[domain.SetupToken]

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Debug exposes the redacted token listing. Dev only.
	Debug bool
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits: RateLimits{
			Strict:   httpx.StrictLimit,
			Moderate: httpx.ModerateLimit,
			Lenient:  httpx.LenientLimit,
		},
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerTwoFactor()
	r.registerSystem()
	if r.Debug {
		r.registerDebug()
	}

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			twofa Two-Factor Authentication API
//	@version		0.1.0
//	@description	Password and OAuth sign-in with TOTP two-factor authentication and single-use backup codes.
//	@description
//	@description				Sessions are EdDSA signed JWTs and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/twofa
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{
		SignInService: r.SignInService,
		LoginService:  r.LoginService,
		Sessions:      r.Sessions,
	}

	// Credential checks are limited per IP and per target so one client
	// can't spray many accounts and many clients can't hammer one.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandlePassword),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/login/oauth",
		httpx.Chain(http.HandlerFunc(h.HandleOAuth),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "account_id"),
		),
	)

	// A temp token allows at most Strict guesses per window, whichever
	// addresses they come from.
	r.Mux.Handle("POST /v1/login/2fa",
		httpx.Chain(http.HandlerFunc(h.HandleTwoFactor),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "temp_token"),
			httpx.RateLimitByJSONField(r.Limits.Strict, "temp_token"),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{
		SetupService:      r.SetupService,
		BackupCodeService: r.BackupCodeService,
	}

	secured := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(limit),
		)
	}

	r.Mux.Handle("GET /v1/2fa/status", secured(h.HandleStatus, r.Limits.Moderate))
	r.Mux.Handle("POST /v1/2fa/setup", secured(h.HandleBegin, r.Limits.Moderate))
	r.Mux.Handle("POST /v1/2fa/setup/confirm", secured(h.HandleConfirm, r.Limits.Strict))
	r.Mux.Handle("POST /v1/2fa/disable", secured(h.HandleDisable, r.Limits.Strict))
	r.Mux.Handle("POST /v1/2fa/backup-codes", secured(h.HandleRegenerate, r.Limits.Strict))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.TempTokens),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics)
	}
}

func (r *Router) registerDebug() {
	r.Mux.Handle("GET /debug/tokens", DebugTokensHandler(r.TempTokens, r.SetupTokens))
}
