// Package memory provides an in-process store.KV with per-key expiry.
// Expired entries are dropped when they are read; there is no background sweeper.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/portal-session-server/store"
)

var _ store.KV = (*KV)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// KV is a mutex-guarded map honouring TTLs.
type KV struct {
	mu      sync.RWMutex
	entries map[string]entry
	nowFunc func() time.Time
}

// Option configures a KV.
type Option func(*KV)

// WithNowFunc overrides the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(kv *KV) {
		kv.nowFunc = now
	}
}

// New creates an empty in-memory KV.
func New(options ...Option) *KV {
	kv := &KV{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(kv)
	}
	return kv
}

// Get returns a copy of the value stored under key, or nil if missing or expired.
func (kv *KV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.RLock()
	e, ok := kv.entries[key]
	kv.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if !e.expiresAt.IsZero() && !kv.nowFunc().Before(e.expiresAt) {
		kv.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if current, ok := kv.entries[key]; ok && current.expiresAt.Equal(e.expiresAt) {
			delete(kv.entries, key)
		}
		kv.mu.Unlock()
		return nil, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, nil
}

// Set stores a copy of value under key. A ttl <= 0 stores the value without expiry.
func (kv *KV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = kv.nowFunc().Add(ttl)
	}

	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.entries[key] = e
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *KV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.entries, key)
	return nil
}

// Len returns the number of entries held, including expired entries not yet read.
func (kv *KV) Len() int {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return len(kv.entries)
}

// Contains reports whether key is physically present, ignoring expiry.
func (kv *KV) Contains(key string) bool {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	_, ok := kv.entries[key]
	return ok
}
