package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig builds the process configuration from the optional YAML file,
// mounted secret files and the environment, in that order of precedence.
func LoadConfig() (*Config, error) {
	envCfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if _, statErr := os.Stat(envCfg.ConfigFile); statErr == nil {
		cfg, err = parseFile(envCfg.ConfigFile)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", statErr)
	}

	secrets, err := LoadSecretsFromFiles(envCfg.SecretsDir)
	if err != nil {
		return nil, err
	}
	InjectSecretsIntoConfig(cfg, secrets)

	envCfg.Apply(cfg)

	return finalize(cfg)
}

// Load reads and parses the YAML configuration file
func Load(filename string) (*Config, error) {
	cfg, err := parseFile(filename)
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

func parseFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands ${VAR} references but leaves ${FILE:name} secret
// references in place for InjectSecretsIntoConfig.
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if strings.HasPrefix(name, "FILE:") {
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})
}

func finalize(cfg *Config) (*Config, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unspecified configuration options
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Path == "" {
		c.Server.Path = "/revalidate"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.MaxRequestSize == 0 {
		c.Server.MaxRequestSize = 1024 * 1024 // 1MB
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "30s"
	}

	// Auth defaults
	if c.Auth.SignatureHeader == "" {
		c.Auth.SignatureHeader = DefaultSignatureHeader
	}
	if c.Auth.Tolerance == "" {
		c.Auth.Tolerance = "0s"
	}
	if c.Auth.Mode == "" {
		switch {
		case c.Auth.Secret != "":
			c.Auth.Mode = AuthModeSignature
		case c.Auth.AllowUnauthenticated:
			c.Auth.Mode = AuthModeNone
		}
	}

	// Invalidation defaults
	if c.Invalidation.Backend == "" {
		c.Invalidation.Backend = BackendTypeLog
	}
	if c.Invalidation.HTTP.Timeout == "" {
		c.Invalidation.HTTP.Timeout = "10s"
	}
	if c.Invalidation.Redis.KeyPrefix == "" {
		c.Invalidation.Redis.KeyPrefix = "revalidate:"
	}
	if c.Invalidation.Redis.Channel == "" {
		c.Invalidation.Redis.Channel = "revalidate"
	}
	if c.Invalidation.NATS.SubjectPrefix == "" {
		c.Invalidation.NATS.SubjectPrefix = "revalidate"
	}
	if c.Invalidation.NATS.Name == "" {
		c.Invalidation.NATS.Name = "revalidate-webhook"
	}
}

// Validate checks the configuration for required fields and valid values
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with '/', got: %s", c.Server.Path)
	}
	if c.Server.MaxRequestSize < 0 {
		return fmt.Errorf("server.max_request_size must not be negative")
	}

	if unresolved := unresolvedSecrets(c); len(unresolved) > 0 {
		return fmt.Errorf("secret file not found for %s", strings.Join(unresolved, ", "))
	}

	if err := validateAuthConfig(c.Auth); err != nil {
		return err
	}

	if err := validateInvalidationConfig(c.Invalidation); err != nil {
		return err
	}

	// Validate duration strings
	durations := map[string]string{
		"server.read_timeout":       c.Server.ReadTimeout,
		"server.write_timeout":      c.Server.WriteTimeout,
		"server.shutdown_timeout":   c.Server.ShutdownTimeout,
		"auth.tolerance":            c.Auth.Tolerance,
		"invalidation.http.timeout": c.Invalidation.HTTP.Timeout,
	}

	for name, value := range durations {
		if _, err := c.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

func validateAuthConfig(auth AuthConfig) error {
	switch auth.Mode {
	case AuthModeSignature, AuthModeSecret:
		if auth.Secret == "" {
			return fmt.Errorf("auth.secret is required when auth mode is '%s'", auth.Mode)
		}
	case AuthModeNone:
		if !auth.AllowUnauthenticated {
			return fmt.Errorf("auth mode 'none' requires auth.allow_unauthenticated: true")
		}
	case "":
		return fmt.Errorf("auth.secret is required unless auth.allow_unauthenticated is true")
	default:
		return fmt.Errorf("invalid auth mode '%s', must be 'signature', 'secret', or 'none'", auth.Mode)
	}

	return nil
}

func validateInvalidationConfig(inv InvalidationConfig) error {
	switch inv.Backend {
	case BackendTypeHTTP:
		if inv.HTTP.URL == "" {
			return fmt.Errorf("invalidation.http.url is required when backend is 'http'")
		}
	case BackendTypeRedis:
		if inv.Redis.URL == "" {
			return fmt.Errorf("invalidation.redis.url is required when backend is 'redis'")
		}
	case BackendTypeNATS:
		if inv.NATS.URL == "" {
			return fmt.Errorf("invalidation.nats.url is required when backend is 'nats'")
		}
	case BackendTypeLog:
	default:
		return fmt.Errorf("invalid invalidation backend '%s', must be one of: http, redis, nats, log", inv.Backend)
	}

	return nil
}
