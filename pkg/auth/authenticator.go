package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingCredentials  = errors.New("missing webhook credentials")
	ErrInvalidCredentials  = errors.New("invalid webhook credentials")
	ErrMalformedSignature  = errors.New("malformed signature header")
	ErrTimestampOutOfRange = errors.New("signature timestamp outside tolerance")
)

// Authenticator authenticates inbound webhook requests.
// The body is the raw request body, exactly as received.
type Authenticator interface {
	Authenticate(r *http.Request, body []byte) error
	Mode() config.AuthMode
}

// NewAuthenticator creates the authenticator selected by the auth configuration
func NewAuthenticator(cfg config.AuthConfig, logger *logrus.Logger) (Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeSignature:
		tolerance, err := time.ParseDuration(cfg.Tolerance)
		if err != nil && cfg.Tolerance != "" {
			return nil, fmt.Errorf("invalid signature tolerance: %w", err)
		}
		header := cfg.SignatureHeader
		if header == "" {
			header = config.DefaultSignatureHeader
		}
		return &SignatureAuthenticator{
			verifier: NewSignatureVerifier(cfg.Secret, tolerance),
			header:   header,
		}, nil

	case config.AuthModeSecret:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("secret auth requires a configured secret")
		}
		return &SecretAuthenticator{secret: cfg.Secret}, nil

	case config.AuthModeNone:
		if !cfg.AllowUnauthenticated {
			return nil, fmt.Errorf("unauthenticated mode requires explicit opt-in")
		}
		logger.WithField("auth_mode", cfg.Mode).Warn("Webhook signature verification is DISABLED; any caller can trigger invalidation")
		return &SkipAuthenticator{logger: logger}, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

// SignatureAuthenticator verifies the HMAC signature header
type SignatureAuthenticator struct {
	verifier *SignatureVerifier
	header   string
}

// Authenticate verifies the signature header against the raw body
func (a *SignatureAuthenticator) Authenticate(r *http.Request, body []byte) error {
	return a.verifier.Verify(body, r.Header.Get(a.header))
}

// Mode returns config.AuthModeSignature
func (a *SignatureAuthenticator) Mode() config.AuthMode {
	return config.AuthModeSignature
}

// SecretAuthenticator compares the query-string secret with the configured one
type SecretAuthenticator struct {
	secret string
}

// Authenticate checks the ?secret= query parameter
func (a *SecretAuthenticator) Authenticate(r *http.Request, _ []byte) error {
	provided := r.URL.Query().Get(QuerySecretParam)
	if provided == "" {
		return ErrMissingCredentials
	}
	if !secretsEqual(provided, a.secret) {
		return ErrInvalidCredentials
	}
	return nil
}

// Mode returns config.AuthModeSecret
func (a *SecretAuthenticator) Mode() config.AuthMode {
	return config.AuthModeSecret
}

// SkipAuthenticator accepts every request
type SkipAuthenticator struct {
	logger *logrus.Logger
}

// Authenticate always succeeds and logs that verification was skipped
func (a *SkipAuthenticator) Authenticate(r *http.Request, _ []byte) error {
	a.logger.WithField("remote_addr", r.RemoteAddr).Warn("Skipping webhook authentication")
	return nil
}

// Mode returns config.AuthModeNone
func (a *SkipAuthenticator) Mode() config.AuthMode {
	return config.AuthModeNone
}
