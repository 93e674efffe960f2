package cachestore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// LRU bounds the number of cached buckets, evicting the least recently used
// entry once the limit is reached. Useful for long-running processes that
// sweep many regions and days.
type LRU struct {
	cache *lru.Cache
}

// NewLRU creates a bounded store holding at most size entries.
func NewLRU(size int) (*LRU, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("cachestore: new lru: %w", err)
	}
	return &LRU{cache: cache}, nil
}

func (l *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

func (l *LRU) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	l.cache.Add(key, stored)
	return nil
}

func (l *LRU) Clear(context.Context) error {
	l.cache.Purge()
	return nil
}

// Len reports the number of resident entries.
func (l *LRU) Len() int {
	return l.cache.Len()
}
