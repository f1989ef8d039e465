package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StagedTTL bounds how long an unconsumed batch survives. One run is
// expected to clear or overwrite it well before this.
const StagedTTL = 24 * time.Hour

// RedisStore keeps one JSON blob per stage key in Redis, for
// deployments where the fetch and load stages run on different hosts.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("staging: invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("staging: redis connection failed: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// Client returns the underlying Redis client (for health checks).
func (s *RedisStore) Client() *redis.Client {
	return s.rdb
}

func stageKey(stage string) string {
	return "staging:" + stage
}

func marshalStage(stage string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("staging: marshal %s: %w", stage, err)
	}
	return data, nil
}

func unmarshalStage(stage string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("staging: unmarshal %s: %w", stage, err)
	}
	return nil
}

func (s *RedisStore) Write(ctx context.Context, stage string, v any) error {
	data, err := marshalStage(stage, v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stageKey(stage), data, StagedTTL).Err()
}

func (s *RedisStore) Read(ctx context.Context, stage string, out any) (bool, error) {
	data, err := s.rdb.Get(ctx, stageKey(stage)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("staging: read %s: %w", stage, err)
	}

	if err := unmarshalStage(stage, data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Clear(ctx context.Context, stage string) error {
	return s.rdb.Del(ctx, stageKey(stage)).Err()
}

// Close shuts down the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
