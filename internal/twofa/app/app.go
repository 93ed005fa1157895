package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	httpapi "github.com/aussiebroadwan/twofa/internal/twofa/http"
	"github.com/aussiebroadwan/twofa/internal/twofa/metrics"
	"github.com/aussiebroadwan/twofa/internal/twofa/notify"
	"github.com/aussiebroadwan/twofa/internal/twofa/oauth"
	"github.com/aussiebroadwan/twofa/internal/twofa/qr"
	"github.com/aussiebroadwan/twofa/internal/twofa/service"
	"github.com/aussiebroadwan/twofa/internal/twofa/store"
	"github.com/aussiebroadwan/twofa/internal/twofa/store/drivers/sqlite"
	"github.com/aussiebroadwan/twofa/internal/twofa/tokenstore"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/httpx"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
	"github.com/aussiebroadwan/twofa/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// notificationSink is a Notifier that holds a connection to release.
type notificationSink interface {
	service.Notifier
	Close() error
}

// Application owns the 2FA service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	redis   *redis.Client // nil with the memory backend
	signer  jwtx.Signer
	keys    *jwtx.KeySet
	metrics *metrics.Metrics
	sink    notificationSink

	tempTokens  tokenstore.Store[domain.TempLoginToken]
	setupTokens tokenstore.Store[domain.SetupToken]

	signInService       *service.SignInService
	loginService        *service.LoginService
	setupService        *service.SetupService
	backupCodeService   *service.BackupCodeService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New builds an Application with every dependency initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "twofa",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initTokenStores(); err != nil {
		app.closeStorage()
		return nil, err
	}

	signer, keys, err := InitSigningKeys(app.cfg, app.logger)
	if err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.signer, app.keys = signer, keys

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("twofa service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"token_backend", app.cfg.TokenBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains requests and pending notifications, then releases
// connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down twofa service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.setupService.WaitNotifications(ctx); err != nil {
		app.logger.Warn("pending notifications abandoned", "error", err)
	}
	if err := app.sink.Close(); err != nil {
		app.logger.Error("error closing notification sink", "error", err)
	}

	if err := app.closeStorage(); err != nil {
		return err
	}

	app.logger.Info("twofa service stopped")
	return nil
}

func (app *Application) closeStorage() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			return err
		}
	}
	return nil
}

// initDatabase opens the account store and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initTokenStores builds the temp login and setup token stores on the
// configured backend.
func (app *Application) initTokenStores() error {
	tempCfg := tokenstore.Config{
		Name:     tokenstore.TempLoginConfig.Name,
		Capacity: app.cfg.TempTokenCapacity,
		TTL:      app.cfg.TempTokenTTL,
	}
	setupCfg := tokenstore.Config{
		Name:     tokenstore.SetupConfig.Name,
		Capacity: app.cfg.SetupTokenCapacity,
		TTL:      app.cfg.SetupTokenTTL,
	}

	switch app.cfg.TokenBackend {
	case TokenBackendRedis:
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		temp, err := tokenstore.NewRedis[domain.TempLoginToken](app.redis, app.cfg.RedisKeyPrefix, tempCfg)
		if err != nil {
			return err
		}
		setup, err := tokenstore.NewRedis[domain.SetupToken](app.redis, app.cfg.RedisKeyPrefix, setupCfg)
		if err != nil {
			return err
		}
		app.tempTokens, app.setupTokens = temp, setup

	default:
		temp, err := tokenstore.NewMemory[domain.TempLoginToken](tempCfg)
		if err != nil {
			return err
		}
		setup, err := tokenstore.NewMemory[domain.SetupToken](setupCfg)
		if err != nil {
			return err
		}
		app.tempTokens, app.setupTokens = temp, setup
	}

	app.metrics.RegisterTokenStores(app.tempTokens, app.setupTokens)
	app.logger.Info("token stores ready", "backend", app.cfg.TokenBackend)
	return nil
}

// initServices wires the 2FA services.
func (app *Application) initServices() {
	codec := service.NewCodec(app.cfg.Issuer, app.cfg.BackupCodeCost)

	ownership := oauth.NewUserInfoVerifier(app.db.Accounts(), app.cfg.OAuthUserInfo, app.cfg.OAuthTimeout)
	auth := service.NewDispatcher(
		service.LocalAuthenticator{Passwords: app.db.Accounts()},
		service.OAuthAuthenticator{Verifier: ownership},
	)

	if len(app.cfg.KafkaBrokers) > 0 {
		app.sink = notify.NewKafkaSink(app.cfg.KafkaBrokers, app.cfg.KafkaTopic, app.logger)
		app.logger.Info("notifications via kafka", "topic", app.cfg.KafkaTopic)
	} else {
		app.sink = notify.LogSink{}
	}

	app.backupCodeService = &service.BackupCodeService{
		Store:    app.db,
		Codec:    codec,
		Auth:     auth,
		Observer: app.metrics,
	}
	app.setupService = &service.SetupService{
		Store:    app.db,
		Tokens:   app.setupTokens,
		Codec:    codec,
		Auth:     auth,
		QR:       qr.PNGRenderer{Size: qr.DefaultSize},
		Notifier: app.sink,
		Observer: app.metrics,
	}
	app.loginService = &service.LoginService{
		Store:       app.db,
		Tokens:      app.tempTokens,
		Codec:       codec,
		BackupCodes: app.backupCodeService,
		Observer:    app.metrics,
	}
	app.signInService = &service.SignInService{
		Store:    app.db,
		Auth:     auth,
		Login:    app.loginService,
		Observer: app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.logger,
		app.cfg.HousekeepingInterval,
		app.tempTokens,
		app.setupTokens,
	)
}

// perMinute turns a requests-per-minute setting into a limiter profile.
func perMinute(n int) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: n, Window: time.Minute, Burst: n}
}

// initHTTP builds the router and server.
func (app *Application) initHTTP() {
	verifier := jwtx.NewVerifierEdDSA(app.keys, app.cfg.Issuer, app.cfg.Audience)

	router := httpapi.NewRouter(app.keys, verifier, BuildVersion, app.db, app.logger)
	router.Limits = httpapi.RateLimits{
		Strict:   perMinute(app.cfg.StrictLimit),
		Moderate: perMinute(app.cfg.ModerateLimit),
		Lenient:  perMinute(app.cfg.LenientLimit),
	}
	router.Sessions = &httpapi.SessionIssuer{
		Signer:   app.signer,
		Issuer:   app.cfg.Issuer,
		Audience: app.cfg.Audience,
		TTL:      app.cfg.SessionTTL,
	}
	router.SignInService = app.signInService
	router.LoginService = app.loginService
	router.SetupService = app.setupService
	router.BackupCodeService = app.backupCodeService
	router.TempTokens = app.tempTokens
	router.SetupTokens = app.setupTokens
	router.Metrics = app.metrics.Handler()
	router.Debug = app.cfg.Env == "dev"
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
