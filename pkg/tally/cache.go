package tally

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tallyhq-io/tally-client/internal/constants"
)

// CacheEntry is a single cached response body with its expiry instant.
type CacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its TTL.
func (e *CacheEntry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Cache is the backend interface for response caching. Keys is required by
// the manager's substring invalidation.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
	Keys(ctx context.Context) ([]string, error)
}

// MemoryCache is an in-memory Cache with lazy expiry and a max-size bound.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get returns the entry for key. Expired entries are evicted and reported
// as expired; there is no background sweep.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrCacheKeyNotFound, key)
	}

	if entry.Expired() {
		delete(c.entries, key)

		return nil, fmt.Errorf("%w: %s", constants.ErrCacheEntryExpired, key)
	}

	return entry, nil
}

// Set stores an entry, evicting the soonest-expiring entry when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry

	return nil
}

// evictOldest removes the entry closest to expiry. Caller holds the lock.
func (c *MemoryCache) evictOldest() {
	var (
		oldestKey    string
		oldestExpiry time.Time
	)

	for key, entry := range c.entries {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Delete removes an entry.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)

	return nil
}

// Has reports whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.Expired()
}

// Keys returns all current keys, including not-yet-evicted expired ones.
func (c *MemoryCache) Keys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}

	return keys, nil
}

// Cleanup removes expired entries eagerly. Optional; reads already evict
// lazily.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

// CacheStats tracks cache effectiveness counters.
type CacheStats struct {
	Hits          int64 `json:"hits"           yaml:"hits"`
	Misses        int64 `json:"misses"         yaml:"misses"`
	Sets          int64 `json:"sets"           yaml:"sets"`
	Invalidations int64 `json:"invalidations"  yaml:"invalidations"`
}

// GetHitRate returns the fraction of reads served from cache.
func (s *CacheStats) GetHitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// CacheManager layers key derivation, TTL handling, substring invalidation,
// and statistics over a Cache backend.
type CacheManager struct {
	cache      Cache
	logger     Logger
	defaultTTL time.Duration

	mu    sync.Mutex
	stats CacheStats
}

// NewCacheManager creates a manager over a backend. logger may be nil.
func NewCacheManager(cache Cache, logger Logger) *CacheManager {
	return &CacheManager{
		cache:      cache,
		logger:     logger,
		defaultTTL: constants.DefaultCacheTTL,
	}
}

// GetCacheKey derives the deterministic key for a request from its method,
// path, query, and body. Headers are deliberately excluded so volatile
// values like Authorization never fragment the cache.
func (m *CacheManager) GetCacheKey(method, path string, query url.Values, body []byte) string {
	key := method + ":" + path

	if len(query) > 0 {
		// Encode sorts parameters, keeping the key deterministic.
		key += "?" + query.Encode()
	}

	if len(body) > 0 {
		sum := sha256.Sum256(body)
		key += ":" + hex.EncodeToString(sum[:])[:constants.CacheKeyHashLength]
	}

	return key
}

// Get returns the cached data for key, or an error on a miss. Expired
// entries count as misses.
func (m *CacheManager) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := m.cache.Get(ctx, key)
	if err != nil {
		m.count(func(s *CacheStats) { s.Misses++ })

		return nil, fmt.Errorf("cache miss: %w", err)
	}

	m.count(func(s *CacheStats) { s.Hits++ })

	return entry.Data, nil
}

// Set stores data under key. A zero ttl falls back to the default.
func (m *CacheManager) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	err := m.cache.Set(ctx, key, &CacheEntry{
		Data:      data,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("caching response: %w", err)
	}

	m.count(func(s *CacheStats) { s.Sets++ })

	return nil
}

// InvalidatePattern removes every entry whose key contains pattern as a
// substring and returns the number removed. This is the coarse,
// resource-scoped invalidation used after mutations.
func (m *CacheManager) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, nil
	}

	keys, err := m.cache.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing cache keys: %w", err)
	}

	removed := 0

	for _, key := range keys {
		if !strings.Contains(key, pattern) {
			continue
		}

		err := m.cache.Delete(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("invalidating cache key %q: %w", key, err)
		}

		removed++
	}

	if removed > 0 {
		m.count(func(s *CacheStats) { s.Invalidations += int64(removed) })

		if m.logger != nil {
			m.logger.Debug("cache invalidated", map[string]interface{}{
				"pattern": pattern,
				"removed": removed,
			})
		}
	}

	return removed, nil
}

// Clear drops every entry.
func (m *CacheManager) Clear(ctx context.Context) error {
	err := m.cache.Clear(ctx)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

// GetStats returns a snapshot of the counters.
func (m *CacheManager) GetStats() *CacheStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.stats

	return &snapshot
}

func (m *CacheManager) count(update func(*CacheStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	update(&m.stats)
}
