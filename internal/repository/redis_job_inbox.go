package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	jobInboxKeyPrefix = "generation:done:"
	jobInboxTTL       = 24 * time.Hour
)

// RedisJobInbox records completed generation job ids so the at-least-once
// queue can be made effectively idempotent. Entries expire after a day, well
// beyond the longest possible retry schedule.
type RedisJobInbox struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisJobInbox verifies connectivity and returns the inbox.
func NewRedisJobInbox(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*RedisJobInbox, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisJobInbox{
		client: client,
		logger: logger.Named("redis_job_inbox"),
	}, nil
}

func (i *RedisJobInbox) key(jobID string) string {
	return jobInboxKeyPrefix + jobID
}

// MarkDone records the job id as completed.
func (i *RedisJobInbox) MarkDone(ctx context.Context, jobID string) error {
	if err := i.client.Set(ctx, i.key(jobID), "1", jobInboxTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark job %s done: %w", jobID, err)
	}
	return nil
}

// IsDone reports whether the job id has already completed.
func (i *RedisJobInbox) IsDone(ctx context.Context, jobID string) (bool, error) {
	_, err := i.client.Get(ctx, i.key(jobID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check job %s: %w", jobID, err)
	}
	return true, nil
}

// Close releases the Redis connection.
func (i *RedisJobInbox) Close() error {
	return i.client.Close()
}
