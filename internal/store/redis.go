package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/quant-ninja/internal/models"
)

// RedisConfig holds connection parameters for the Redis store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps the snapshot as a string value under the storage key
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to Redis and pings it to verify connectivity
func NewRedisStore(ctx context.Context, cfg RedisConfig, key string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisStore{rdb: rdb, key: key}, nil
}

// Load reads the snapshot value
func (s *RedisStore) Load(ctx context.Context) ([]models.Position, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get %s: %w", s.key, err)
	}
	return decodeSnapshot(data)
}

// Save overwrites the snapshot value with no expiry
func (s *RedisStore) Save(ctx context.Context, positions []models.Position) error {
	data, err := encodeSnapshot(positions)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", s.key, err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Driver returns the driver name
func (s *RedisStore) Driver() string {
	return "redis"
}
