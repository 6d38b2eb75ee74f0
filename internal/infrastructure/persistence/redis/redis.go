// Package redis provides a Redis-backed implementation of the KVStore
// contract for multi-instance deployments where wallet state must be
// shared. Keys are namespaced under a configurable prefix so several
// services can share one Redis database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chainvault/walletgate/internal/config"
	"github.com/chainvault/walletgate/internal/domain/repository"
	"github.com/chainvault/walletgate/pkg/logger"
)

var _ repository.KVStore = (*Store)(nil)

// DefaultKeyPrefix namespaces every key this store writes.
const DefaultKeyPrefix = "walletgate:"

// Store implements repository.KVStore on top of a go-redis client.
type Store struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

// NewStore connects to Redis using the supplied configuration and
// verifies connectivity with a ping before returning.
func NewStore(cfg *config.RedisConfig, log logger.Logger) (*Store, error) {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "Redis store connected",
		logger.String("addr", opts.Addr),
		logger.Int("db", cfg.DB),
	)

	return &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		logger: log,
	}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests to point
// the store at a miniredis instance.
func NewStoreWithClient(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		logger: log,
	}
}

func (s *Store) redisKey(key string) string {
	return s.prefix + key
}

// RawGet returns the value stored under key, or repository.ErrKeyNotFound
// when the key is absent.
func (s *Store) RawGet(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get key from redis: %w", err)
	}
	return data, nil
}

// RawSet stores value under key without expiration. Records managed by
// the secure store live until explicitly removed.
func (s *Store) RawSet(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key in redis: %w", err)
	}
	return nil
}

// RawRemove deletes key. Removing an absent key is not an error.
func (s *Store) RawRemove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key from redis: %w", err)
	}
	return nil
}

// RawKeys scans for all keys under the store prefix and returns them
// with the prefix stripped. SCAN is used instead of KEYS so the call
// stays safe on shared instances.
func (s *Store) RawKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan redis keys: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Close releases the underlying client connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
