package github

import (
	"fmt"
	"sync"
	"time"
)

// PRRef identifies a pull request across repositories
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

type cachedReviews struct {
	reviews  []Review
	cachedAt time.Time
}

// ReviewCache stores review listings in memory with automatic expiration.
// Reviews on closed PRs rarely change, so a long-running refresher can skip
// most review calls between cycles.
type ReviewCache struct {
	mu      sync.RWMutex
	entries map[PRRef]cachedReviews
	ttl     time.Duration
	now     func() time.Time
}

// NewReviewCache creates a new review cache
func NewReviewCache(ttl time.Duration) *ReviewCache {
	if ttl == 0 {
		ttl = time.Hour
	}

	return &ReviewCache{
		entries: make(map[PRRef]cachedReviews),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put adds or replaces the reviews of a PR
func (c *ReviewCache) Put(ref PRRef, reviews []Review) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ref] = cachedReviews{reviews: reviews, cachedAt: c.now()}
}

// Get retrieves the reviews of a PR if cached and not expired
func (c *ReviewCache) Get(ref PRRef) ([]Review, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[ref]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.cachedAt) > c.ttl {
		return nil, false
	}

	return entry.reviews, true
}

// CleanExpired removes expired entries and returns how many were dropped
func (c *ReviewCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for ref, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, ref)
			removed++
		}
	}

	return removed
}

// Count returns the number of cached PRs
func (c *ReviewCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
