package recurrence

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CacheEntry represents a cached expansion result
type CacheEntry struct {
	Occurrences []LocalDateTime
	ExpiresAt   time.Time
	AccessedAt  time.Time
}

// RecurrenceCache memoizes expansions of the same rule over the same window,
// e.g. several calendar views rendering one item concurrently.
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache creates a new recurrence cache with the given configuration
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	go cache.cleanupLoop()

	return cache
}

// generateCacheKey hashes the operation, the encoded rule and the window
func (c *RecurrenceCache) generateCacheKey(operation, rule string, rangeStart, rangeEnd LocalDateTime) string {
	hasher := sha256.New()
	hasher.Write([]byte(operation))
	hasher.Write([]byte{0})
	hasher.Write([]byte(rule))
	hasher.Write([]byte{0})
	hasher.Write([]byte(rangeStart.String()))
	hasher.Write([]byte(rangeEnd.String()))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired.
// The returned slice is a copy.
func (c *RecurrenceCache) Get(operation, rule string, rangeStart, rangeEnd LocalDateTime) ([]LocalDateTime, bool) {
	key := c.generateCacheKey(operation, rule, rangeStart, rangeEnd)
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	entry.AccessedAt = now
	return append([]LocalDateTime(nil), entry.Occurrences...), true
}

// Set stores a result in the cache
func (c *RecurrenceCache) Set(operation, rule string, rangeStart, rangeEnd LocalDateTime, occurrences []LocalDateTime) {
	key := c.generateCacheKey(operation, rule, rangeStart, rangeEnd)
	now := c.now()

	entry := &CacheEntry{
		Occurrences: append([]LocalDateTime(nil), occurrences...),
		ExpiresAt:   now.Add(c.ttl),
		AccessedAt:  now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then least recently used ones while over
// the limit. Callers must hold the write lock.
func (c *RecurrenceCache) cleanup() {
	now := c.now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	keys := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keys = append(keys, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].accessedAt.Before(keys[j].accessedAt) })

	for i := 0; i < len(keys) && len(c.entries) > c.maxEntries; i++ {
		delete(c.entries, keys[i].key)
	}
}

func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// CacheStats provides information about cache contents
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	expired := 0
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}
