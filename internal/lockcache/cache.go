// Package lockcache holds the client-side view of lock records with a
// bounded staleness window.
//
// The cache never talks to the store itself. Callers ask Stale before a
// read, refresh from the store when it reports true, and call MarkRefreshed
// when they start that refresh.
package lockcache

import (
	"time"

	"github.com/testbench-tools/taco/internal/clock"
	"github.com/testbench-tools/taco/internal/lockstore"
)

// DefaultThreshold is the age after which cached records must be refetched.
const DefaultThreshold = 10 * time.Second

// Cache maps testbench ids to their last known lock record.
type Cache struct {
	clock       clock.Clock
	threshold   time.Duration
	entries     map[string]lockstore.Record
	refreshedAt time.Time
}

// New returns an empty cache that is stale until the first MarkRefreshed.
// A non-positive threshold selects DefaultThreshold.
func New(c clock.Clock, threshold time.Duration) *Cache {
	if c == nil {
		c = clock.Real()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Cache{
		clock:     c,
		threshold: threshold,
		entries:   make(map[string]lockstore.Record),
	}
}

// Threshold returns the staleness window.
func (c *Cache) Threshold() time.Duration { return c.threshold }

// Stale reports whether at least the threshold has elapsed since the last
// refresh.
func (c *Cache) Stale() bool {
	return c.clock.Since(c.refreshedAt) >= c.threshold
}

// MarkRefreshed restarts the staleness window at the current time.
func (c *Cache) MarkRefreshed() {
	c.refreshedAt = c.clock.Now()
}

// Age returns the time since the last refresh. It is very large for a cache
// that was never refreshed.
func (c *Cache) Age() time.Duration {
	return c.clock.Since(c.refreshedAt)
}

// Get returns the cached record for id.
func (c *Cache) Get(id string) (lockstore.Record, bool) {
	r, ok := c.entries[id]
	return r, ok
}

// Put overwrites the record for id, as after a successful write to the
// store.
func (c *Cache) Put(id string, r lockstore.Record) {
	c.entries[id] = r
}

// Merge overwrites every id present in recs. Ids absent from recs keep
// their previous entries.
func (c *Cache) Merge(recs map[string]lockstore.Record) {
	for id, r := range recs {
		c.entries[id] = r
	}
}

// Reset drops all entries and makes the cache stale.
func (c *Cache) Reset() {
	clear(c.entries)
	c.refreshedAt = time.Time{}
}

// Len returns the number of cached records.
func (c *Cache) Len() int { return len(c.entries) }
