// Package research provides a caching decorator over the domain.ResearchProvider
// contract. Concrete providers (web search, content fetch, deep-research
// task backends) are out-of-scope adapters per spec.md §4.I; this package
// only adds the cross-cutting cost-saving behavior every adapter benefits
// from.
package research

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// cacheEntry is a msgpack-encoded response blob plus its expiry. Encoding
// to bytes (rather than keeping the typed value) means Cache has no
// dependency on what's being cached, matching the disposable,
// rebuild-on-miss nature of the store the teacher's work.Cache models.
type cacheEntry struct {
	payload []byte
	expires time.Time
}

// Cache is an in-memory, disposable, TTL-expiring key/value store keyed by
// a hash of (operation, normalized request). It is safe to drop and
// rebuild at any time: a cache miss simply means the wrapped provider is
// called again.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Key hashes an operation name and a normalized request value into a
// cache key. callers must pass an already-normalized request (e.g. a
// struct with stable field ordering) so equivalent requests collide.
func Key(operation string, request any) (string, error) {
	encoded, err := msgpack.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("research: encode cache key request: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0}) // separator so "ab"+"c" != "a"+"bc"
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get decodes the cached value for key into dest, reporting false on a
// miss or an expired entry.
func (c *Cache) Get(key string, dest any) bool {
	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if !ok || time.Now().After(entry.expires) {
		return false
	}
	return msgpack.Unmarshal(entry.payload, dest) == nil
}

// Set stores value under key with the given TTL, msgpack-encoding it.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("research: encode cache value: %w", err)
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{payload: payload, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Purge drops every entry, e.g. between orchestrator runs that must not
// see stale research.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
