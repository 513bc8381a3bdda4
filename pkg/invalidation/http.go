package invalidation

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/bourkey/revalidate-webhook/pkg/metrics"
	go_json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// API constants
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"

	ContentTypeJSON = "application/json"

	// maxErrorBody bounds how much of an error response is kept for the message
	maxErrorBody = 1024
)

// HTTPBackend posts invalidations to the site's revalidation API.
// Calls are not retried; a failed call is reported to the caller.
type HTTPBackend struct {
	httpClient *http.Client
	logger     *logrus.Logger
	url        string
	token      string
	now        func() time.Time
}

// NewHTTPBackend creates a revalidation API backend
func NewHTTPBackend(cfg config.HTTPConfig, logger *logrus.Logger) (*HTTPBackend, error) {
	if cfg.URL == "" {
		return nil, &ConfigurationError{Field: "invalidation.http.url", Message: "url is required"}
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, &ConfigurationError{Field: "invalidation.http.url", Message: "url must be http or https"}
	}

	timeout := 10 * time.Second
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, &ConfigurationError{Field: "invalidation.http.timeout", Message: err.Error()}
		}
		timeout = parsed
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.TLSVerificationEnabled(),
		},
	}

	return &HTTPBackend{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
		url:    cfg.URL,
		token:  cfg.Token,
		now:    time.Now,
	}, nil
}

// Type returns "http"
func (b *HTTPBackend) Type() string {
	return string(config.BackendTypeHTTP)
}

// InvalidateTag asks the revalidation API to expire a cache tag
func (b *HTTPBackend) InvalidateTag(ctx context.Context, tag string) error {
	return b.send(ctx, tagMessage(tag, b.now()))
}

// InvalidatePath asks the revalidation API to expire a route
func (b *HTTPBackend) InvalidatePath(ctx context.Context, path string, scope models.PathScope) error {
	return b.send(ctx, pathMessage(path, scope, b.now()))
}

// Close releases idle connections
func (b *HTTPBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

func (b *HTTPBackend) send(ctx context.Context, msg Message) error {
	body, err := go_json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(HeaderContentType, ContentTypeJSON)
	if b.token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+b.token)
	}

	b.logger.WithFields(logrus.Fields{
		"url":   b.url,
		"type":  msg.Type,
		"token": sanitizeToken(b.token),
	}).Debug("Sending revalidation API request")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		metrics.RecordInvalidationAPIError("network_error", 0)
		return &NetworkError{Operation: "invalidate " + string(msg.Type), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.RecordInvalidationAPIError(errorType(resp.StatusCode), resp.StatusCode)
		return NewAPIError(resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func errorType(statusCode int) string {
	if statusCode >= 500 {
		return "server_error"
	}
	return "client_error"
}

// sanitizeToken returns a sanitized version of the token for logging
func sanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:2] + "***" + token[len(token)-2:]
}
