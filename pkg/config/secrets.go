package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const secretFilePrefix = "${FILE:"

// LoadSecretsFromFiles loads secrets from mounted secret volumes
// Looks for files in the format: <secretsDir>/<secret-name>
// Returns a map of secret names to their values
func LoadSecretsFromFiles(secretsDir string) (map[string]string, error) {
	secrets := make(map[string]string)

	if _, err := os.Stat(secretsDir); os.IsNotExist(err) {
		return secrets, nil
	}

	files, err := os.ReadDir(secretsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets directory: %w", err)
	}

	for _, file := range files {
		// Mounted volumes expose ..data symlinks and dot-dirs
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		secretPath := filepath.Join(secretsDir, file.Name())
		content, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file %s: %w", file.Name(), err)
		}

		secrets[file.Name()] = strings.TrimSpace(string(content))
	}

	return secrets, nil
}

// InjectSecretsIntoConfig replaces ${FILE:<secret-name>} placeholders with secret values
func InjectSecretsIntoConfig(cfg *Config, secrets map[string]string) {
	cfg.Auth.Secret = resolveSecret(cfg.Auth.Secret, secrets)
	cfg.Invalidation.HTTP.Token = resolveSecret(cfg.Invalidation.HTTP.Token, secrets)
	cfg.Invalidation.Redis.URL = resolveSecret(cfg.Invalidation.Redis.URL, secrets)
	cfg.Invalidation.NATS.URL = resolveSecret(cfg.Invalidation.NATS.URL, secrets)
}

// unresolvedSecrets returns the config fields still holding a ${FILE:...}
// placeholder after injection
func unresolvedSecrets(cfg *Config) []string {
	fields := []struct {
		name  string
		value string
	}{
		{"auth.secret", cfg.Auth.Secret},
		{"invalidation.http.token", cfg.Invalidation.HTTP.Token},
		{"invalidation.redis.url", cfg.Invalidation.Redis.URL},
		{"invalidation.nats.url", cfg.Invalidation.NATS.URL},
	}

	var unresolved []string
	for _, f := range fields {
		if strings.HasPrefix(f.value, secretFilePrefix) {
			unresolved = append(unresolved, f.name)
		}
	}
	return unresolved
}

// resolveSecret replaces ${FILE:<secret-name>} with the secret value.
// A missing secret leaves the placeholder, which Validate rejects.
func resolveSecret(value string, secrets map[string]string) string {
	if strings.HasPrefix(value, secretFilePrefix) && strings.HasSuffix(value, "}") {
		secretName := strings.TrimSuffix(strings.TrimPrefix(value, secretFilePrefix), "}")
		if secretValue, ok := secrets[secretName]; ok {
			return secretValue
		}
	}

	return value
}
