package config

import "time"

// AuthMode selects how inbound webhooks are authenticated
type AuthMode string

const (
	AuthModeSignature AuthMode = "signature"
	AuthModeSecret    AuthMode = "secret"
	AuthModeNone      AuthMode = "none"
)

// BackendType defines the cache-invalidation backend to use
type BackendType string

const (
	BackendTypeHTTP  BackendType = "http"
	BackendTypeRedis BackendType = "redis"
	BackendTypeNATS  BackendType = "nats"
	BackendTypeLog   BackendType = "log"
)

// DefaultSignatureHeader is the header the CMS puts the signature envelope in
const DefaultSignatureHeader = "sanity-webhook-signature"

// Config represents the complete application configuration
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Invalidation InvalidationConfig `yaml:"invalidation"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int    `yaml:"port"`
	Path            string `yaml:"path"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	MaxRequestSize  int64  `yaml:"max_request_size"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// AuthConfig defines authentication settings for the webhook
type AuthConfig struct {
	Mode                 AuthMode `yaml:"mode"`   // signature, secret or none
	Secret               string   `yaml:"secret"` // HMAC key and probe secret
	SignatureHeader      string   `yaml:"signature_header"`
	Tolerance            string   `yaml:"tolerance"` // 0s disables the timestamp check
	AllowUnauthenticated bool     `yaml:"allow_unauthenticated"`
}

// InvalidationConfig holds cache-invalidation backend settings
type InvalidationConfig struct {
	Backend BackendType `yaml:"backend"`
	Strict  bool        `yaml:"strict"`
	HTTP    HTTPConfig  `yaml:"http"`
	Redis   RedisConfig `yaml:"redis"`
	NATS    NATSConfig  `yaml:"nats"`
}

// HTTPConfig holds settings for the revalidation API backend
type HTTPConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	Timeout   string `yaml:"timeout"`
	VerifyTLS *bool  `yaml:"verify_tls,omitempty"`
}

// RedisConfig holds settings for the redis backend
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
	Channel   string `yaml:"channel"`
}

// NATSConfig holds settings for the NATS backend
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Name          string `yaml:"name"`
}

// ParseDuration converts string duration to time.Duration
func (c *Config) ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// TLSVerificationEnabled reports whether the HTTP backend verifies certificates.
// Unset means enabled.
func (h HTTPConfig) TLSVerificationEnabled() bool {
	return h.VerifyTLS == nil || *h.VerifyTLS
}
