// Package invalidation talks to the cache that serves the generated site.
// Every backend treats invalidation as idempotent: invalidating fresh
// content is harmless.
package invalidation

import (
	"context"
	"time"

	"github.com/bourkey/revalidate-webhook/internal/models"
)

// Invalidator marks cached content as stale
type Invalidator interface {
	// InvalidateTag marks every cached artifact labeled with tag as stale
	InvalidateTag(ctx context.Context, tag string) error

	// InvalidatePath marks the artifact for path as stale. With
	// models.PathScopeLayout everything nested under path is stale too.
	InvalidatePath(ctx context.Context, path string, scope models.PathScope) error
}

// Backend is an Invalidator bound to a concrete cache technology
type Backend interface {
	Invalidator

	// Type returns the backend type identifier ("http", "redis", "nats" or "log")
	Type() string

	// Close releases connections held by the backend
	Close() error
}

// Message is the wire form of one invalidation, shared by the http, redis
// and nats backends
type Message struct {
	Type      models.TargetKind `json:"type"`
	Tag       string            `json:"tag,omitempty"`
	Path      string            `json:"path,omitempty"`
	Scope     models.PathScope  `json:"scope,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func tagMessage(tag string, at time.Time) Message {
	return Message{Type: models.TargetKindTag, Tag: tag, Timestamp: at.UnixMilli()}
}

func pathMessage(path string, scope models.PathScope, at time.Time) Message {
	if scope == "" {
		scope = models.PathScopePage
	}
	return Message{Type: models.TargetKindPath, Path: path, Scope: scope, Timestamp: at.UnixMilli()}
}
