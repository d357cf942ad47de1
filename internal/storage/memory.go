package storage

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
)

// Memory is an in-process store backed by go-cache. Entries never expire.
type Memory struct {
	cache        *cache.Cache
	maxItemBytes int
}

// NewMemory creates an in-memory store. A positive maxItemBytes makes writes of
// larger values fail with ErrQuotaExceeded.
func NewMemory(maxItemBytes int) *Memory {
	return &Memory{
		cache:        cache.New(cache.NoExpiration, 0),
		maxItemBytes: maxItemBytes,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	x, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	v := x.([]byte)
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if m.maxItemBytes > 0 && len(value) > m.maxItemBytes {
		return quotaError("set", key, fmt.Sprintf("value of %d bytes exceeds the %d byte limit", len(value), m.maxItemBytes), nil)
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.cache.Set(key, v, cache.NoExpiration)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}
