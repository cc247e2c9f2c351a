package cache

import (
	"context"
	"sync"
	"time"

	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/domain/report"
)

type summaryEntry struct {
	summary   report.Summary
	expiresAt time.Time
}

// MemorySummaryCache implements SummaryCache in process memory.
// Entries left behind by a bumped generation are evicted once they expire.
type MemorySummaryCache struct {
	mu          sync.Mutex
	entries     map[string]summaryEntry
	generations map[string]int64
}

// NewMemorySummaryCache creates an empty cache
func NewMemorySummaryCache() *MemorySummaryCache {
	return &MemorySummaryCache{
		entries:     make(map[string]summaryEntry),
		generations: make(map[string]int64),
	}
}

// Get returns a copy of the cached summary
func (c *MemorySummaryCache) Get(ctx context.Context, key string) (*report.Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !time.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	s := e.summary
	return &s, true, nil
}

// Set stores summary under key for ttl
func (c *MemorySummaryCache) Set(ctx context.Context, key string, summary *report.Summary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = summaryEntry{summary: *summary, expiresAt: now.Add(ttl)}
	return nil
}

// Generation returns the current generation of scope
func (c *MemorySummaryCache) Generation(ctx context.Context, scope string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[scope], nil
}

// Bump increments the generation of scope
func (c *MemorySummaryCache) Bump(ctx context.Context, scope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[scope]++
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemorySummaryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ reportapp.SummaryCache = (*MemorySummaryCache)(nil)
