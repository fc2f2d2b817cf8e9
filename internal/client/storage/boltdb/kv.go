package boltdb

import (
	"bytes"
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/shiftgrid/internal/client/storage"
)

// Get returns the value stored under key
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var value string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		if bucket == nil {
			return storage.ErrKeyNotFound
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrKeyNotFound
		}

		// Копируем: срез bbolt валиден только внутри транзакции
		value = string(data)
		return nil
	})

	if err != nil {
		return "", err
	}

	return value, nil
}

// Set stores value under key
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketKV)
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			return fmt.Errorf("failed to save key: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// Remove deletes key; missing keys are ignored
func (s *Storage) Remove(ctx context.Context, key string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})

	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// Keys returns keys with the given prefix in byte order
func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var keys []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		if bucket == nil {
			return nil
		}

		// Курсор отсортирован по ключу, поэтому Seek по префиксу достаточно
		c := bucket.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	return keys, nil
}

// Clear removes all keys from storage
func (s *Storage) Clear(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketKV); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("failed to delete bucket: %w", err)
		}

		if _, err := tx.CreateBucket(bucketKV); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}

var _ storage.KVStore = (*Storage)(nil)
