package montage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"kybervision-api/internal/logging"
	"kybervision-api/internal/metrics"
)

// DefaultRedisKey is the list the external worker consumes with BRPOP.
const DefaultRedisKey = "kybervision:montage:jobs"

// RedisQueue hands jobs off through a Redis list, for deployments where
// the montage worker runs as a separate service. Same contract as the
// in-memory queue: push-and-return, never wait for completion.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to Redis and verifies the connection. key may
// be empty to use DefaultRedisKey.
func NewRedisQueue(ctx context.Context, addr, password, key string) (*RedisQueue, error) {
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", addr, err)
	}

	logging.Info("montage queue backed by Redis at %s (key %s)", addr, key)
	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue pushes the JSON-encoded job onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "rejected").Inc()
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "rejected").Inc()
		return fmt.Errorf("failed to push job to Redis: %w", err)
	}

	metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "queued").Inc()
	logging.Info("queued %s job for video %d on Redis", job.Kind, job.VideoID)
	return nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
