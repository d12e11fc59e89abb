package recurrence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T, cfg CacheConfig) (*RecurrenceCache, *time.Time) {
	t.Helper()
	cache := NewRecurrenceCache(cfg)
	t.Cleanup(cache.Close)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	return cache, &now
}

func TestRecurrenceCache_BasicOperations(t *testing.T) {
	cache, _ := testCache(t, CacheConfig{TTL: 5 * time.Minute, MaxEntries: 100, CleanupInterval: time.Minute})

	start := LocalDate(2025, time.March, 1)
	end := LocalDate(2025, time.March, 31)
	rule := "DTSTART:20250303T190000;RRULE:FREQ=WEEKLY;INTERVAL=1"
	occ := []LocalDateTime{NewLocalDateTime(2025, time.March, 3, 19, 0, 0)}

	result, found := cache.Get(opExpand, rule, start, end)
	assert.False(t, found)
	assert.Nil(t, result)

	cache.Set(opExpand, rule, start, end, occ)

	result, found = cache.Get(opExpand, rule, start, end)
	require.True(t, found)
	assert.Equal(t, occ, result)

	// different window, different key
	_, found = cache.Get(opExpand, rule, start, end.AddDate(0, 0, 1))
	assert.False(t, found)
}

func TestRecurrenceCache_ReturnsCopies(t *testing.T) {
	cache, _ := testCache(t, DefaultCacheConfig)

	start := LocalDate(2025, time.March, 1)
	end := LocalDate(2025, time.March, 31)
	occ := []LocalDateTime{NewLocalDateTime(2025, time.March, 3, 19, 0, 0)}
	cache.Set(opExpand, "r", start, end, occ)

	got, found := cache.Get(opExpand, "r", start, end)
	require.True(t, found)
	got[0] = LocalDate(2000, time.January, 1)

	again, _ := cache.Get(opExpand, "r", start, end)
	assert.Equal(t, occ[0], again[0])
}

func TestRecurrenceCache_TTLExpiration(t *testing.T) {
	cache, now := testCache(t, CacheConfig{TTL: time.Minute, MaxEntries: 100, CleanupInterval: time.Hour})

	start := LocalDate(2025, time.March, 1)
	end := LocalDate(2025, time.March, 31)
	cache.Set(opExpand, "r", start, end, nil)

	_, found := cache.Get(opExpand, "r", start, end)
	assert.True(t, found)

	*now = now.Add(2 * time.Minute)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.ExpiredEntries)

	_, found = cache.Get(opExpand, "r", start, end)
	assert.False(t, found)
	assert.Equal(t, 0, cache.Stats().TotalEntries)
}

func TestRecurrenceCache_MaxEntries(t *testing.T) {
	cache, now := testCache(t, CacheConfig{TTL: time.Hour, MaxEntries: 3, CleanupInterval: time.Hour})

	start := LocalDate(2025, time.March, 1)
	end := LocalDate(2025, time.March, 31)
	for i := 0; i < 5; i++ {
		*now = now.Add(time.Second)
		cache.Set(opExpand, fmt.Sprintf("rule-%d", i), start, end, nil)
	}

	assert.Equal(t, 3, cache.Stats().TotalEntries)

	// the oldest entries were evicted first
	_, found := cache.Get(opExpand, "rule-0", start, end)
	assert.False(t, found)
	_, found = cache.Get(opExpand, "rule-4", start, end)
	assert.True(t, found)
}

func TestRecurrenceCache_ConcurrentAccess(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	start := LocalDate(2025, time.March, 1)
	end := LocalDate(2025, time.March, 31)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("rule-%d-%d", id, j%5)
				cache.Set(opExpand, key, start, end, []LocalDateTime{start})
				cache.Get(opExpand, key, start, end)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, cache.Stats().TotalEntries)
}

func TestRecurrenceCache_CloseTwice(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	cache.Close()
	assert.NotPanics(t, cache.Close)
}

func TestEngine_CachedExpansion(t *testing.T) {
	engine := NewEngineWithConfig(DefaultEngineConfig)
	defer engine.Close()

	rule := Rule{
		Frequency: Daily,
		Interval:  1,
		Anchor:    NewLocalDateTime(2025, time.March, 1, 9, 0, 0),
		Bound:     CountBound(5),
	}
	start := LocalDate(2025, time.March, 1)
	end := LocalDate(2025, time.March, 31)

	first := engine.Expand(rule, start, end)
	second := engine.Expand(rule, start, end)
	assert.Len(t, first, 5)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, engine.cache.Stats().TotalEntries)
}
