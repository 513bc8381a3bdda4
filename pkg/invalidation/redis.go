package invalidation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bourkey/revalidate-webhook/internal/models"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	go_json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisPingTimeout = 5 * time.Second

// RedisBackend records invalidations as marker keys holding the unix
// millisecond time of the last invalidation, and announces each one on a
// pub/sub channel so cache nodes can evict without polling.
type RedisBackend struct {
	client    *redis.Client
	logger    *logrus.Logger
	keyPrefix string
	channel   string
	now       func() time.Time
}

// NewRedisBackend connects to redis and verifies the connection
func NewRedisBackend(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) (*RedisBackend, error) {
	if cfg.URL == "" {
		return nil, &ConfigurationError{Field: "invalidation.redis.url", Message: "url is required"}
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisBackendWithClient(client, cfg, logger), nil
}

// NewRedisBackendWithClient wraps an existing client
func NewRedisBackendWithClient(client *redis.Client, cfg config.RedisConfig, logger *logrus.Logger) *RedisBackend {
	return &RedisBackend{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
		channel:   cfg.Channel,
		now:       time.Now,
	}
}

// Type returns "redis"
func (b *RedisBackend) Type() string {
	return string(config.BackendTypeRedis)
}

// InvalidateTag stamps <prefix>tag:<tag> and publishes the invalidation
func (b *RedisBackend) InvalidateTag(ctx context.Context, tag string) error {
	msg := tagMessage(tag, b.now())
	return b.apply(ctx, msg, b.keyPrefix+"tag:"+tag)
}

// InvalidatePath stamps <prefix>path:<path> (and <prefix>layout:<path> for
// layout scope) and publishes the invalidation
func (b *RedisBackend) InvalidatePath(ctx context.Context, path string, scope models.PathScope) error {
	msg := pathMessage(path, scope, b.now())
	keys := []string{b.keyPrefix + "path:" + path}
	if msg.Scope == models.PathScopeLayout {
		keys = append(keys, b.keyPrefix+"layout:"+path)
	}
	return b.apply(ctx, msg, keys...)
}

// Close closes the redis client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) apply(ctx context.Context, msg Message, keys ...string) error {
	payload, err := go_json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode invalidation: %w", err)
	}

	stamp := strconv.FormatInt(msg.Timestamp, 10)

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Set(ctx, key, stamp, 0)
		}
		pipe.Publish(ctx, b.channel, payload)
		return nil
	})
	if err != nil {
		return &NetworkError{Operation: "redis invalidate " + string(msg.Type), Err: err}
	}

	b.logger.WithFields(logrus.Fields{
		"keys":    keys,
		"channel": b.channel,
	}).Debug("Recorded invalidation in redis")

	return nil
}
