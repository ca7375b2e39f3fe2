package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a shared byte store used as a second cache level, so that
// several server instances reuse each other's renders.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte) error
}

// RedisStore keeps entries in Redis under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to the Redis server at url (redis://host:port/db)
// and checks it answers. A zero ttl keeps entries until evicted by Redis.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &RedisStore{client: client, prefix: "apcac:", ttl: ttl, logger: logger}, nil
}

// Get returns the bytes stored under key.
func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		s.logger.Error("Failed to get from cache", zap.String("key", string(key)), zap.Error(err))
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}
	s.logger.Debug("Cache hit", zap.String("key", string(key)))
	return val, true, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key Key, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+string(key), value, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to set cache", zap.String("key", string(key)), zap.Error(err))
		return fmt.Errorf("cache set error: %w", err)
	}
	s.logger.Debug("Cache set", zap.String("key", string(key)), zap.Duration("ttl", s.ttl))
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	s.logger.Info("Closing Redis connection")
	return s.client.Close()
}

// Tiered wraps fn so that its JSON-encoded result is looked up in and
// written to store. Store failures are logged and fall through to fn: the
// second level is an optimization, never a source of errors.
func Tiered[V any](store Store, key Key, logger *zap.Logger, fn func(context.Context) (V, error)) func(context.Context) (V, error) {
	if store == nil {
		return fn
	}
	return func(ctx context.Context) (V, error) {
		if data, ok, err := store.Get(ctx, key); err == nil && ok {
			var v V
			err := json.Unmarshal(data, &v)
			if err == nil {
				return v, nil
			}
			logger.Warn("Discarding undecodable cache entry", zap.String("key", string(key)), zap.Error(err))
		}

		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			logger.Warn("Cannot encode cache entry", zap.String("key", string(key)), zap.Error(err))
			return v, nil
		}
		_ = store.Set(ctx, key, data)
		return v, nil
	}
}
