// Package dispatch sends resolved invalidation targets to a backend.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/invalidation"
	"github.com/sirupsen/logrus"
)

// ErrDispatchFailed is returned in strict mode when any target failed
var ErrDispatchFailed = errors.New("dispatch failed")

// Dispatcher issues one invalidation call per target, in order. Calls are
// never retried; every failure is collected and the remaining targets are
// still attempted.
type Dispatcher struct {
	invalidator invalidation.Invalidator
	strict      bool
	logger      *logrus.Logger
}

// NewDispatcher creates a dispatcher. With strict set, Dispatch returns
// ErrDispatchFailed when any target fails.
func NewDispatcher(invalidator invalidation.Invalidator, strict bool, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		invalidator: invalidator,
		strict:      strict,
		logger:      logger,
	}
}

// Strict reports whether failures are surfaced as an error
func (d *Dispatcher) Strict() bool {
	return d.strict
}

// Dispatch invalidates every target and reports the outcome of each
func (d *Dispatcher) Dispatch(ctx context.Context, targets []models.InvalidationTarget) (models.DispatchReport, error) {
	var report models.DispatchReport

	for _, target := range targets {
		if err := d.invalidate(ctx, target); err != nil {
			d.logger.WithFields(logrus.Fields{
				"target":       target.String(),
				"client_error": invalidation.IsClientError(err),
			}).WithError(err).Error("Invalidation failed")

			report.Failed = append(report.Failed, models.TargetFailure{Target: target, Err: err})
			continue
		}

		d.logger.WithField("target", target.String()).Debug("Invalidated target")
		report.Succeeded = append(report.Succeeded, target)
	}

	if report.HasFailures() && d.strict {
		return report, &FailedError{Failures: report.Failed}
	}

	return report, nil
}

func (d *Dispatcher) invalidate(ctx context.Context, target models.InvalidationTarget) error {
	switch target.Kind {
	case models.TargetKindTag:
		return d.invalidator.InvalidateTag(ctx, target.Value)
	case models.TargetKindPath:
		return d.invalidator.InvalidatePath(ctx, target.Value, target.Scope)
	default:
		return fmt.Errorf("unknown target kind %q", target.Kind)
	}
}

// FailedError lists the targets that could not be invalidated. It matches
// ErrDispatchFailed with errors.Is and unwraps to each target's error.
type FailedError struct {
	Failures []models.TargetFailure
}

func (e *FailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Target.String(), f.Err))
	}
	return fmt.Sprintf("%s for %d target(s): %s", ErrDispatchFailed, len(e.Failures), strings.Join(parts, "; "))
}

// Is matches ErrDispatchFailed
func (e *FailedError) Is(target error) bool {
	return target == ErrDispatchFailed
}

// Unwrap returns the per-target errors
func (e *FailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
