// Package redisstore implements storage.KVStore on Redis so that presence
// records and edit locks are visible to every client of the same grid.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/shiftgrid/internal/client/storage"
)

// Options configures the Redis-backed store.
type Options struct {
	// Namespace is prepended to every key, e.g. "shiftgrid:2024-03:"
	Namespace string

	// TTL expires keys that nobody refreshes (0 = keep forever).
	// Presence sweeps still run; TTL only cleans up after crashed clients.
	TTL time.Duration

	// ScanCount is the COUNT hint for SCAN (default 100)
	ScanCount int64
}

// Store is a KVStore backed by a redis client.
type Store struct {
	client redis.UniversalClient
	opts   Options
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts Options) *Store {
	if opts.ScanCount <= 0 {
		opts.ScanCount = 100
	}
	return &Store{client: client, opts: opts}
}

// Dial creates a client for addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return New(client, opts), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	return s.opts.Namespace + k
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys scans keys with the given prefix. SCAN may return duplicates, so the
// result is deduplicated and sorted.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", s.opts.ScanCount).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), s.opts.Namespace)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ storage.KVStore = (*Store)(nil)
