// Package memory provides an in-memory KVStore. The session falls back to
// it when the durable store cannot be opened, and tests use it as a shared
// store between several simulated users.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iudanet/shiftgrid/internal/client/storage"
)

// Store is a concurrency-safe map-backed KVStore.
type Store struct {
	data map[string]string
	// failErr, когда задана, возвращается из всех операций (имитация недоступного хранилища)
	failErr error
	mu      sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

// FailWith makes every subsequent operation return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failErr = err
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failErr != nil {
		return "", s.failErr
	}
	value, ok := s.data[key]
	if !ok {
		return "", storage.ErrKeyNotFound
	}
	return value, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}
	s.data[key] = value
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}
	delete(s.data, key)
	return nil
}

// Keys returns sorted keys with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failErr != nil {
		return nil, s.failErr
	}
	keys := make([]string, 0)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

var _ storage.KVStore = (*Store)(nil)
