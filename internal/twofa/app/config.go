package app

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/caarlos0/env/v11"
)

const (
	TokenBackendMemory = "memory"
	TokenBackendRedis  = "redis"
)

type Config struct {
	Issuer   string   `env:"ISSUER" envDefault:"twofa"`
	Audience []string `env:"AUDIENCE" envDefault:"twofa"`

	DatabaseFile string `env:"DATABASE_FILE" envDefault:"twofa.db"`
	PepperFile   string `env:"PEPPER_FILE" envDefault:"pepper"`

	// SigningKeyFile holds a PKCS#8 Ed25519 PEM. Empty means a key is
	// generated at startup and sessions don't survive a restart.
	SigningKeyFile string        `env:"SIGNING_KEY_FILE"`
	SigningKeyID   string        `env:"SIGNING_KEY_ID" envDefault:"twofa-1"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"15m"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1m"`

	TokenBackend   string `env:"TOKEN_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"twofa"`

	TempTokenCapacity  int           `env:"TEMP_TOKEN_CAPACITY" envDefault:"1000"`
	TempTokenTTL       time.Duration `env:"TEMP_TOKEN_TTL" envDefault:"5m"`
	SetupTokenCapacity int           `env:"SETUP_TOKEN_CAPACITY" envDefault:"500"`
	SetupTokenTTL      time.Duration `env:"SETUP_TOKEN_TTL" envDefault:"15m"`

	BackupCodeCost int `env:"BACKUP_CODE_COST" envDefault:"10"`

	// Notifications go to Kafka when brokers are set, otherwise to the log.
	KafkaBrokers []string `env:"KAFKA_BROKERS"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"twofa.notifications"`

	// OAuthUserInfo maps provider name to userinfo URL, e.g.
	// "github=https://api.github.com/user,google=https://openidconnect.googleapis.com/v1/userinfo".
	OAuthUserInfo map[string]string `env:"OAUTH_USERINFO" envKeyValSeparator:"="`
	OAuthTimeout  time.Duration     `env:"OAUTH_TIMEOUT" envDefault:"5s"`

	// Limits for the rate limiter profiles, requests per minute.
	StrictLimit   int `env:"RATE_LIMIT_STRICT" envDefault:"5"`
	ModerateLimit int `env:"RATE_LIMIT_MODERATE" envDefault:"20"`
	LenientLimit  int `env:"RATE_LIMIT_LENIENT" envDefault:"100"`
}

// LoadConfig reads TWOFA_* variables from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "TWOFA_"})
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.TokenBackend {
	case TokenBackendMemory, TokenBackendRedis:
	default:
		return fmt.Errorf("unknown token backend %q", c.TokenBackend)
	}
	if c.TempTokenCapacity <= 0 || c.SetupTokenCapacity <= 0 {
		return fmt.Errorf("token store capacity must be positive")
	}
	if c.TempTokenTTL <= 0 || c.SetupTokenTTL <= 0 {
		return fmt.Errorf("token store ttl must be positive")
	}
	c.BackupCodeCost = max(c.BackupCodeCost, cryptox.MinBackupCodeCost)
	return nil
}
