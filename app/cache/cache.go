package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Cache stores fetched snippet sources for a limited time.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// HealthReporter is implemented by caches that can describe their backend state.
type HealthReporter interface {
	Health(ctx context.Context) map[string]any
}

var (
	_ HealthReporter = (*MemoryCache)(nil)
	_ HealthReporter = (*RedisCache)(nil)
	_ Cache          = (*MemoryCache)(nil)
	_ Cache          = (*RedisCache)(nil)
)

// SnippetKey generates a consistent cache key for a snippet URL
func SnippetKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("snippet:%x", hash[:8])
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

type MemoryCache struct {
	entries map[string]memoryEntry
	now     func() time.Time
	mu      sync.RWMutex
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false, nil
	}

	return entry.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)
	c.entries[key] = memoryEntry{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// sweep drops expired entries. Callers hold the write lock.
func (c *MemoryCache) sweep(now time.Time) {
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Health(_ context.Context) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]any{
		"status":  "healthy",
		"type":    "memory",
		"entries": len(c.entries),
	}
}
