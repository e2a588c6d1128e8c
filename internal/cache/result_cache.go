// Package cache provides an in-memory cache of simulation results.
//
// Runs are deterministic functions of their request, so a result can be reused
// for any identical request. Entries expire after a TTL and the oldest entry is
// evicted when the cache is full. A background loop sweeps expired entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/metrics"
)

// Config holds cache configuration.
type Config struct {
	MaxEntries    int           // Capacity (default: 64)
	TTL           time.Duration // Entry lifetime (default: 30m)
	SweepInterval time.Duration // Expiry sweep period (default: 1m)
}

// Key identifies a request.
type Key string

// KeyFor hashes the JSON encoding of parts. Struct fields encode in declaration
// order and map keys sorted, so equal requests give equal keys.
func KeyFor(parts ...any) (Key, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("encoding cache key part %d: %w", i, err)
		}
	}
	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

type entry struct {
	result   *coverage.Result
	storedAt time.Time
}

// ResultCache is safe for concurrent use by multiple goroutines. Cached results
// are shared and must be treated as read-only.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[Key]*entry

	config Config
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a result cache.
func New(config Config, logger *slog.Logger) *ResultCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 64
	}
	if config.TTL <= 0 {
		config.TTL = 30 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	logger.Info("result cache initialized",
		"max_entries", config.MaxEntries,
		"ttl_seconds", config.TTL.Seconds(),
	)
	return &ResultCache{
		entries: make(map[Key]*entry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the live result for k, if any.
func (c *ResultCache) Get(k Key) (*coverage.Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if ok && c.now().Sub(e.storedAt) < c.config.TTL {
		c.hits.Add(1)
		metrics.IncResultCacheHits()
		return e.result, true
	}

	c.misses.Add(1)
	metrics.IncResultCacheMisses()
	return nil, false
}

// Put stores res under k, evicting the oldest entry if the cache is full.
func (c *ResultCache) Put(k Key, res *coverage.Result) {
	if res == nil {
		return
	}
	var evicted int

	c.mu.Lock()
	if _, exists := c.entries[k]; !exists {
		for len(c.entries) >= c.config.MaxEntries {
			c.removeOldestLocked()
			evicted++
		}
	}
	c.entries[k] = &entry{result: res, storedAt: c.now()}
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.AddResultCacheEvictions(evicted)
	}
	c.updateMetrics()
}

// removeOldestLocked deletes the entry with the earliest store time. Caller holds mu.
func (c *ResultCache) removeOldestLocked() {
	var oldestKey Key
	var oldest time.Time
	for k, e := range c.entries {
		if oldest.IsZero() || e.storedAt.Before(oldest) {
			oldest, oldestKey = e.storedAt, k
		}
	}
	delete(c.entries, oldestKey)
}

// evictExpired removes entries older than the TTL.
func (c *ResultCache) evictExpired() int {
	cutoff := c.now().Add(-c.config.TTL)
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.storedAt.After(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddResultCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	return removed
}

// Start sweeps expired entries every SweepInterval. Blocks until ctx is cancelled.
func (c *ResultCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("result cache sweeper stopped")
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries    int       `json:"entries"`
	MaxEntries int       `json:"max_entries"`
	Oldest     time.Time `json:"oldest"`
	Newest     time.Time `json:"newest"`
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Evictions  int64     `json:"evictions"`
}

// Stats returns current cache statistics.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	count := len(c.entries)
	var oldest, newest time.Time
	for _, e := range c.entries {
		if oldest.IsZero() || e.storedAt.Before(oldest) {
			oldest = e.storedAt
		}
		if newest.IsZero() || e.storedAt.After(newest) {
			newest = e.storedAt
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:    count,
		MaxEntries: c.config.MaxEntries,
		Oldest:     oldest,
		Newest:     newest,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}

// updateMetrics publishes current cache size to Prometheus.
func (c *ResultCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetResultCacheEntries(count)
}
