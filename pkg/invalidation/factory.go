package invalidation

import (
	"context"
	"fmt"
	"time"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/bourkey/revalidate-webhook/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// NewBackend creates the backend selected by cfg.Backend. The returned
// backend records duration and outcome metrics for every call.
func NewBackend(ctx context.Context, cfg config.InvalidationConfig, logger *logrus.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case config.BackendTypeHTTP:
		backend, err = NewHTTPBackend(cfg.HTTP, logger)
	case config.BackendTypeRedis:
		backend, err = NewRedisBackend(ctx, cfg.Redis, logger)
	case config.BackendTypeNATS:
		backend, err = NewNATSBackend(cfg.NATS, logger)
	case config.BackendTypeLog, "":
		logger.Warn("Using log invalidation backend; cache will not be invalidated")
		backend = NewLogBackend(logger)
	default:
		return nil, &ConfigurationError{
			Field:   "invalidation.backend",
			Message: fmt.Sprintf("unsupported backend: %s", cfg.Backend),
		}
	}
	if err != nil {
		return nil, err
	}

	logger.WithField("backend", backend.Type()).Info("Invalidation backend ready")
	return Instrument(backend), nil
}

// Instrument wraps a backend so every call is measured
func Instrument(backend Backend) Backend {
	return &instrumentedBackend{Backend: backend}
}

type instrumentedBackend struct {
	Backend
}

func (b *instrumentedBackend) InvalidateTag(ctx context.Context, tag string) error {
	start := time.Now()
	err := b.Backend.InvalidateTag(ctx, tag)
	b.record(models.TargetKindTag, start, err)
	return err
}

func (b *instrumentedBackend) InvalidatePath(ctx context.Context, path string, scope models.PathScope) error {
	start := time.Now()
	err := b.Backend.InvalidatePath(ctx, path, scope)
	b.record(models.TargetKindPath, start, err)
	return err
}

func (b *instrumentedBackend) record(kind models.TargetKind, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.RecordInvalidation(b.Type(), string(kind), status, time.Since(start).Seconds())
}
