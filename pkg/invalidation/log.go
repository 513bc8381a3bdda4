package invalidation

import (
	"context"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/sirupsen/logrus"
)

// LogBackend only logs invalidations. Useful for local development and
// dry runs where no cache is reachable.
type LogBackend struct {
	logger *logrus.Logger
}

// NewLogBackend creates a logging backend
func NewLogBackend(logger *logrus.Logger) *LogBackend {
	return &LogBackend{logger: logger}
}

// Type returns "log"
func (b *LogBackend) Type() string {
	return string(config.BackendTypeLog)
}

// InvalidateTag logs the tag
func (b *LogBackend) InvalidateTag(ctx context.Context, tag string) error {
	b.logger.WithField("tag", tag).Info("Invalidate tag")
	return nil
}

// InvalidatePath logs the path
func (b *LogBackend) InvalidatePath(ctx context.Context, path string, scope models.PathScope) error {
	b.logger.WithFields(logrus.Fields{
		"path":  path,
		"scope": scope,
	}).Info("Invalidate path")
	return nil
}

// Close is a no-op
func (b *LogBackend) Close() error {
	return nil
}
