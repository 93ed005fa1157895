package app

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofa/internal/twofa/domain"
	"github.com/aussiebroadwan/twofa/pkg/authsdk"
	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/idx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway redis and returns its address.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForListeningPort("6379/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

// TestRedisBackedTwoFactorFlow runs setup and a challenged login against
// two application instances sharing one redis, so a token issued by one
// instance is redeemed on the other.
func TestRedisBackedTwoFactorFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	addr := setupRedisContainer(t)
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.TokenBackend = TokenBackendRedis
	cfg.RedisAddr = addr
	cfg.StrictLimit = 1000
	cfg.ModerateLimit = 1000

	first, err := New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, first.Shutdown()) }()

	// The second instance shares the database file and redis but has its
	// own signing key, so only tokens (not sessions) cross over.
	second, err := New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, second.Shutdown()) }()

	first.housekeepingService.Start()
	second.housekeepingService.Start()

	srvA := httptest.NewServer(first.router)
	defer srvA.Close()
	srvB := httptest.NewServer(second.router)
	defer srvB.Close()
	clientA := authsdk.NewSDKClient(srvA.URL)
	clientB := authsdk.NewSDKClient(srvB.URL)

	hash, err := cryptox.HashPassword("Abc12345")
	require.NoError(t, err)
	require.NoError(t, first.db.Accounts().CreateAccount(ctx, domain.Account{
		ID:           idx.New().String(),
		Email:        "ada@example.com",
		FirstName:    "Ada",
		Kind:         domain.KindLocal,
		PasswordHash: hash,
	}))
	cred := authsdk.Credential{Password: "Abc12345"}

	sess, err := clientA.Login(ctx, "ada@example.com", "Abc12345")
	require.NoError(t, err)
	api := clientA.NewSession(sess.AccessToken)

	setup, err := api.BeginSetup(ctx, cred)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, api.ConfirmSetup(ctx, setup.SetupToken, code))

	_, err = clientA.Login(ctx, "ada@example.com", "Abc12345")
	var challenge *authsdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &challenge)

	sess, err = clientB.VerifyTwoFactor(ctx, challenge.TempToken, setup.BackupCodes[0])
	require.NoError(t, err)
	require.Contains(t, sess.AMR, "mfa")

	_, err = clientA.VerifyTwoFactor(ctx, challenge.TempToken, setup.BackupCodes[1])
	require.ErrorIs(t, err, authsdk.ErrInvalidTokenOrCode)
}
