package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds environment variable-based configuration.
// Empty or nil fields leave the file-based value untouched.
type EnvConfig struct {
	ConfigFile string `env:"CONFIG_FILE" envDefault:"config.yaml"`
	SecretsDir string `env:"SECRETS_DIR" envDefault:"/secrets"`
	Port       int    `env:"PORT"`
	LogLevel   string `env:"LOG_LEVEL"`

	Secret               string `env:"SANITY_REVALIDATE_SECRET"`
	AuthMode             string `env:"REVALIDATE_AUTH_MODE"`
	AllowUnauthenticated *bool  `env:"REVALIDATE_ALLOW_UNAUTHENTICATED"`

	Backend  string `env:"INVALIDATION_BACKEND"`
	Strict   *bool  `env:"INVALIDATION_STRICT"`
	APIURL   string `env:"REVALIDATE_API_URL"`
	APIToken string `env:"REVALIDATE_API_TOKEN"`
	RedisURL string `env:"REDIS_URL"`
	NATSURL  string `env:"NATS_URL"`
}

// LoadFromEnv reads configuration from environment variables
func LoadFromEnv() (*EnvConfig, error) {
	cfg, err := env.ParseAs[EnvConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Apply overlays the environment values onto cfg
func (e *EnvConfig) Apply(cfg *Config) {
	if e.Port != 0 {
		cfg.Server.Port = e.Port
	}
	setIfNotEmpty(&cfg.LogLevel, e.LogLevel)

	setIfNotEmpty(&cfg.Auth.Secret, e.Secret)
	if e.AuthMode != "" {
		cfg.Auth.Mode = AuthMode(strings.ToLower(e.AuthMode))
	}
	if e.AllowUnauthenticated != nil {
		cfg.Auth.AllowUnauthenticated = *e.AllowUnauthenticated
	}

	if e.Backend != "" {
		cfg.Invalidation.Backend = BackendType(strings.ToLower(e.Backend))
	}
	if e.Strict != nil {
		cfg.Invalidation.Strict = *e.Strict
	}
	setIfNotEmpty(&cfg.Invalidation.HTTP.URL, e.APIURL)
	setIfNotEmpty(&cfg.Invalidation.HTTP.Token, e.APIToken)
	setIfNotEmpty(&cfg.Invalidation.Redis.URL, e.RedisURL)
	setIfNotEmpty(&cfg.Invalidation.NATS.URL, e.NATSURL)
}

func setIfNotEmpty(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
