// Package storage provides pluggable string key-value stores for persisting
// decryption signatures. No store promises durability beyond the process
// unless its backend provides it.
package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// IStringStorage is an asynchronous string key-value store.
type IStringStorage interface {
	// GetItem returns the value for key and whether it was present.
	GetItem(ctx context.Context, key string) (string, bool, error)
	// SetItem stores value under key, overwriting any prior value.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

const DefaultInMemorySize = 1024

// InMemoryStorage keeps the most recently used entries in process memory.
type InMemoryStorage struct {
	cache *lru.Cache[string, string]
}

var _ IStringStorage = (*InMemoryStorage)(nil)

// NewInMemoryStorage creates a store holding at most size entries. A size of
// zero or less uses DefaultInMemorySize.
func NewInMemoryStorage(size int) (*InMemoryStorage, error) {
	if size <= 0 {
		size = DefaultInMemorySize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &InMemoryStorage{cache: cache}, nil
}

func (s *InMemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(key)
	return v, ok, nil
}

func (s *InMemoryStorage) SetItem(_ context.Context, key, value string) error {
	s.cache.Add(key, value)
	return nil
}

func (s *InMemoryStorage) RemoveItem(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

func (s *InMemoryStorage) Len() int {
	return s.cache.Len()
}
