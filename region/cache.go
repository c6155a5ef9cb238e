package region

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/rangekv/rangekv/logger"
)

// CachingLocator wraps a Locator with a per-table location cache so repeated
// lookups along a scan do not hit the directory on every cursor move. Stale
// entries are dropped through Invalidate before the wrapped locator is asked
// again, which is what breaks the retry loop against stale data.
type CachingLocator struct {
	inner Locator

	mu     sync.Mutex
	tables map[string][]Descriptor // sorted by StartKey
}

// NewCachingLocator wraps inner with a location cache.
func NewCachingLocator(inner Locator) *CachingLocator {
	return &CachingLocator{
		inner:  inner,
		tables: make(map[string][]Descriptor),
	}
}

// Locate implements Locator.
func (c *CachingLocator) Locate(ctx context.Context, table string, row []byte, reversed bool) (Descriptor, error) {
	if d, ok := c.lookup(table, row, reversed); ok {
		return d, nil
	}

	d, err := c.inner.Locate(ctx, table, row, reversed)
	if err != nil {
		return Descriptor{}, err
	}
	c.insert(d)
	logger.DebugContext(ctx, "cached region location", "region", d.String())
	return d, nil
}

// Invalidate implements Locator.
func (c *CachingLocator) Invalidate(d Descriptor) {
	c.mu.Lock()
	regions := c.tables[d.Table]
	for i, cached := range regions {
		if cached.ID == d.ID {
			c.tables[d.Table] = append(regions[:i:i], regions[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.inner.Invalidate(d)
}

// InvalidateTable drops all cached locations for a table.
func (c *CachingLocator) InvalidateTable(table string) {
	c.mu.Lock()
	delete(c.tables, table)
	c.mu.Unlock()
}

// CachedCount returns the number of cached locations for a table.
func (c *CachingLocator) CachedCount(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[table])
}

func (c *CachingLocator) lookup(table string, row []byte, reversed bool) (Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.tables[table] {
		if reversed {
			if d.ContainsBefore(row) {
				return d, true
			}
		} else if d.Contains(row) {
			return d, true
		}
	}
	return Descriptor{}, false
}

func (c *CachingLocator) insert(d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	regions := c.tables[d.Table]

	// Drop anything overlapping the new descriptor; a split or move makes
	// the old entries wrong even when their ids differ.
	kept := regions[:0]
	for _, cached := range regions {
		if cached.ID == d.ID || overlaps(cached, d) {
			continue
		}
		kept = append(kept, cached)
	}
	kept = append(kept, d)
	sort.Slice(kept, func(i, j int) bool {
		return bytes.Compare(kept[i].StartKey, kept[j].StartKey) < 0
	})
	c.tables[d.Table] = kept
}

func overlaps(a, b Descriptor) bool {
	aBeforeB := len(a.EndKey) > 0 && len(b.StartKey) > 0 && bytes.Compare(a.EndKey, b.StartKey) <= 0
	bBeforeA := len(b.EndKey) > 0 && len(a.StartKey) > 0 && bytes.Compare(b.EndKey, a.StartKey) <= 0
	return !aBeforeB && !bBeforeA
}
