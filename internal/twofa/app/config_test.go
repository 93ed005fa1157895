package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, TokenBackendMemory, cfg.TokenBackend)
	require.Equal(t, 1000, cfg.TempTokenCapacity)
	require.Equal(t, 5*time.Minute, cfg.TempTokenTTL)
	require.Equal(t, 500, cfg.SetupTokenCapacity)
	require.Equal(t, 15*time.Minute, cfg.SetupTokenTTL)
	require.Equal(t, 10, cfg.BackupCodeCost)
	require.Equal(t, 8080, cfg.Port)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TWOFA_TOKEN_BACKEND", "redis")
	t.Setenv("TWOFA_TEMP_TOKEN_TTL", "2m")
	t.Setenv("TWOFA_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TWOFA_OAUTH_USERINFO", "github=https://api.github.com/user,example=http://localhost:9000/userinfo")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, TokenBackendRedis, cfg.TokenBackend)
	require.Equal(t, 2*time.Minute, cfg.TempTokenTTL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, map[string]string{
		"github":  "https://api.github.com/user",
		"example": "http://localhost:9000/userinfo",
	}, cfg.OAuthUserInfo)
}

func TestLoadConfigClampsBackupCodeCost(t *testing.T) {
	t.Setenv("TWOFA_BACKUP_CODE_COST", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.BackupCodeCost)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("TWOFA_TOKEN_BACKEND", "memcached")

	_, err := LoadConfig()
	require.Error(t, err)
}
