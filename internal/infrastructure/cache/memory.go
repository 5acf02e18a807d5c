package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemorySize = 256

// Memory is an in-process LRU whose entries expire after a TTL.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory creates a cache holding at most size entries. A zero ttl
// disables expiry.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the value for key if present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

// Set stores value under key, evicting the oldest entry when full.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int { return m.lru.Len() }

// Close drops every entry.
func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
