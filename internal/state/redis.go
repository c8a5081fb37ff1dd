package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	xerrors "AgentFleet-Chain/internal/errors"
)

// RedisConfig describes the Redis connection for the run-state store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps the run-state document under a single Redis key. Same
// single-writer assumption as the file store.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	key := cfg.Key
	if key == "" {
		key = "agentfleet:state"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load reads the document; a missing key yields a fresh empty default.
func (s *RedisStore) Load() (*RunState, error) {
	raw, err := s.client.Get(context.Background(), s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewRunState(), nil
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "read state from redis")
	}
	return decode(raw)
}

// Save rewrites the whole document under the configured key.
func (s *RedisStore) Save(state *RunState) error {
	raw, err := encode(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(context.Background(), s.key, raw, 0).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "write state to redis")
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
