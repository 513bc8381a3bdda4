package invalidation

import (
	"context"
	"fmt"
	"time"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	go_json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS connection defaults
const (
	natsReconnectWait  = 2 * time.Second
	natsConnectTimeout = 5 * time.Second
)

// publisher is the subset of *nats.Conn used by NATSBackend
type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSBackend publishes invalidations on <prefix>.tag and <prefix>.path
type NATSBackend struct {
	conn          publisher
	logger        *logrus.Logger
	subjectPrefix string
	now           func() time.Time
}

// NewNATSBackend connects to the NATS server
func NewNATSBackend(cfg config.NATSConfig, logger *logrus.Logger) (*NATSBackend, error) {
	if cfg.URL == "" {
		return nil, &ConfigurationError{Field: "invalidation.nats.url", Message: "url is required"}
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.Timeout(natsConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrlRedacted()).Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return newNATSBackend(conn, cfg.SubjectPrefix, logger), nil
}

func newNATSBackend(conn publisher, subjectPrefix string, logger *logrus.Logger) *NATSBackend {
	return &NATSBackend{
		conn:          conn,
		logger:        logger,
		subjectPrefix: subjectPrefix,
		now:           time.Now,
	}
}

// Type returns "nats"
func (b *NATSBackend) Type() string {
	return string(config.BackendTypeNATS)
}

// InvalidateTag publishes a tag invalidation
func (b *NATSBackend) InvalidateTag(ctx context.Context, tag string) error {
	return b.publish(ctx, tagMessage(tag, b.now()))
}

// InvalidatePath publishes a path invalidation
func (b *NATSBackend) InvalidatePath(ctx context.Context, path string, scope models.PathScope) error {
	return b.publish(ctx, pathMessage(path, scope, b.now()))
}

// Close drains the connection so pending publishes are delivered
func (b *NATSBackend) Close() error {
	return b.conn.Drain()
}

// Subject returns the subject messages of kind are published on
func (b *NATSBackend) Subject(kind models.TargetKind) string {
	return b.subjectPrefix + "." + string(kind)
}

func (b *NATSBackend) publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := go_json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}

	subject := b.Subject(msg.Type)
	if err := b.conn.Publish(subject, payload); err != nil {
		return &NetworkError{Operation: "nats publish " + subject, Err: err}
	}

	// Flush so a dead connection surfaces as a failure for this target
	// instead of a silently buffered message.
	if err := b.conn.FlushWithContext(ctx); err != nil {
		return &NetworkError{Operation: "nats flush " + subject, Err: err}
	}

	b.logger.WithField("subject", subject).Debug("Published invalidation to NATS")
	return nil
}
