package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	extErrors "github.com/pkg/errors"

	"github.com/zllovesuki/plzdm/spec"
)

// EventLog remembers which webhook events were processed successfully
type EventLog interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// RedisEventLog is an EventLog backed by expiring Redis keys
type RedisEventLog struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisEventLog returns an EventLog keeping event ids for three days
func NewRedisEventLog(r *redis.Client) (*RedisEventLog, error) {
	if r == nil {
		return nil, fmt.Errorf("nil Redis is invalid")
	}
	return &RedisEventLog{
		redis: r,
		ttl:   spec.ProcessedEventTTL,
	}, nil
}

func eventKey(eventID string) string {
	return "stripe:event:" + eventID
}

// Processed reports whether the event was marked before
func (l *RedisEventLog) Processed(ctx context.Context, eventID string) (bool, error) {
	n, err := l.redis.WithContext(ctx).Exists(eventKey(eventID)).Result()
	if err != nil {
		return false, extErrors.Wrap(err, "Cannot query processed event")
	}
	return n > 0, nil
}

// Mark records the event as processed
func (l *RedisEventLog) Mark(ctx context.Context, eventID string) error {
	if err := l.redis.WithContext(ctx).Set(eventKey(eventID), time.Now().Unix(), l.ttl).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot mark event as processed")
	}
	return nil
}
