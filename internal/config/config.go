// config provides the service configuration structure and loads it from
// a file and/or environment variables with a predictable priority.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/JosephRemingston/insightAI/internal/pkg/secret"
)

// Storage and session backends.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// minSecretLen: minimum HMAC secret length in bytes (HS256 block of entropy).
const minSecretLen = 32

// Config: root configuration of the service.
// Sources, highest priority first:
//  1. explicit path via the --config flag;
//  2. path in the CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only (cleanenv).
//
// Environment variables are always overlaid on top of the file.
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Crypto   CryptoConfig   `yaml:"crypto"`
	Storage  StorageConfig  `yaml:"storage"`
	Session  SessionConfig  `yaml:"session"`
	Registry RegistryConfig `yaml:"registry"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
}

// HTTPConfig: network settings of the HTTP server.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token issuance and verification parameters.
// Access and refresh tokens are signed with different secrets.
type AuthConfig struct {
	AccessSecret    string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"TOKEN_ISSUER" env-default:"insightai"`
}

// CryptoConfig: key material for encrypting stored connection strings.
// EncryptionKey is 32 raw bytes encoded as hex or base64.
type CryptoConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"DB_ENCRYPTION_KEY" env-required:"true"`
}

// Key decodes EncryptionKey.
func (c CryptoConfig) Key() ([]byte, error) {
	return secret.ParseKey(c.EncryptionKey)
}

// StorageConfig selects and configures the user/credential store.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"`
	MongoURI    string `yaml:"mongo_uri" env:"MONGODB_URI"`
	PostgresURL string `yaml:"postgres_url" env:"DATABASE_URL"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	Driver        string        `yaml:"driver" env:"SESSION_DRIVER" env-default:"redis"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
	Prefix        string        `yaml:"prefix" env:"SESSION_PREFIX"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
}

// RegistryConfig: external connection registry settings.
type RegistryConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"REGISTRY_CONNECT_TIMEOUT" env-default:"10s"`
}

// TimeoutConfig: service timeouts.
type TimeoutConfig struct {
	Request  time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"15s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Validate enforces the fail-fast startup rules that tags alone cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Auth.AccessSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("auth.access_token_secret must be at least %d bytes", minSecretLen))
	}
	if len(c.Auth.RefreshSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("auth.refresh_token_secret must be at least %d bytes", minSecretLen))
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		errs = append(errs, errors.New("auth: access and refresh secrets must differ"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("auth: token ttl must be positive"))
	}

	if _, err := c.Crypto.Key(); err != nil {
		errs = append(errs, fmt.Errorf("crypto.encryption_key: %w", err))
	}

	switch c.Storage.Driver {
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongo_uri is required for the mongo driver"))
		}
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}

	switch c.Session.Driver {
	case DriverRedis:
		if c.Session.RedisURL == "" {
			errs = append(errs, errors.New("session.redis_url is required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("session.driver %q is not supported", c.Session.Driver))
	}

	if c.Registry.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("registry.connect_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// Load reads configuration by priority:
// 1) explicit path; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// Env variables are overlaid on top of the file, then Validate runs.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		return &cfg, nil
	}

	// 1) Explicit path.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		return &cfg, nil
	}

	// 4) ENV only.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
