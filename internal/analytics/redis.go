// Package analytics counts dispatches per trigger and target in time
// buckets so operators can see how often each schedule or workflow fires.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/eoflow/internal/domain"
)

// Event is one completed dispatch.
type Event struct {
	Trigger    domain.Trigger
	TargetKind string // "process", "workflow" or "schedule"
	TargetID   string
	Status     string
	At         time.Time
}

type RedisSink struct {
	client    redis.UniversalClient
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client redis.UniversalClient, window, retention time.Duration) *RedisSink {
	if window <= 0 {
		window = time.Minute
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisSink{client: client, window: window, retention: retention}
}

// Record increments the bucket counter for the event and the per-status
// counter beside it.
func (s *RedisSink) Record(ctx context.Context, ev Event) error {
	key := buildKey(ev, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)
	if ev.Status != "" {
		statusKey := key + ":" + ev.Status
		pipe.Incr(ctx, statusKey)
		pipe.Expire(ctx, statusKey, s.retention)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Count reads the counter of the bucket containing at.
func (s *RedisSink) Count(ctx context.Context, ev Event) (int64, error) {
	n, err := s.client.Get(ctx, buildKey(ev, s.window)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func buildKey(ev Event, window time.Duration) string {
	return fmt.Sprintf("eoflow:%s:%s:%s:%s", ev.Trigger, ev.TargetKind, ev.TargetID, truncateToBucket(ev.At, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	case 24 * time.Hour:
		return t.Format("20060102")
	default:
		return t.Format("200601021504")
	}
}
