// Package analytics keeps best-effort dispatch counters in Redis, bucketed
// by time window. A Redis failure never affects a dispatch.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/djlord-it/talentledger/internal/domain"
)

// Config controls bucketing and key lifetime.
type Config struct {
	// Window is the bucket width: one minute, five minutes or one hour.
	Window time.Duration

	// Retention is the TTL applied to each bucket key.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window:    time.Hour,
		Retention: 7 * 24 * time.Hour,
	}
}

type RedisSink struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

func NewRedisSink(client *redis.Client, config Config, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{client: client, config: config, logger: logger.Named("analytics")}
}

// Record increments the counter for workflow and outcome in the bucket
// containing at. Errors are logged and dropped.
func (s *RedisSink) Record(ctx context.Context, workflow domain.WorkflowKind, outcome string, at time.Time) {
	if err := s.write(ctx, workflow, outcome, at); err != nil {
		s.logger.Warn("dispatch counter not recorded",
			zap.String("workflow_kind", string(workflow)),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

func (s *RedisSink) write(ctx context.Context, workflow domain.WorkflowKind, outcome string, at time.Time) error {
	key := buildKey(workflow, outcome, at, s.config.Window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.Retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Count reads the counter for the bucket containing at. A missing key is zero.
func (s *RedisSink) Count(ctx context.Context, workflow domain.WorkflowKind, outcome string, at time.Time) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(workflow, outcome, at, s.config.Window)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func buildKey(workflow domain.WorkflowKind, outcome string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("tl:dispatch:%s:%s:%s", workflow, outcome, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
