package storage

import (
	"context"
)

// KVStore defines a best-effort, non-transactional string key-value store.
// It backs presence records, edit locks, the pending-change log and the
// offline grid cache. Callers treat every error as "storage unavailable"
// and degrade instead of failing the edit.
type KVStore interface {
	// Get returns the value stored under key
	// Returns ErrKeyNotFound if key doesn't exist
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix, sorted
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Key prefixes used by the client components
const (
	PrefixPresence = "presence/"
	PrefixLock     = "lock/"
	PrefixPending  = "pending/"
	PrefixCache    = "cache/"
	PrefixAuth     = "auth/"
)
