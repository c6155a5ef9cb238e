package client

import (
	"sync"

	"github.com/rangekv/rangekv/metrics"
	"github.com/rangekv/rangekv/types"
)

// cacheEntry is one result awaiting consumption, tagged with the sequence
// number it was fetched under so duplicate delivery after a retry is
// detectable.
type cacheEntry struct {
	result *types.Result
	seq    uint64
}

// resultCache is the strictly-ordered FIFO queue bridging fetch cadence to
// consumption cadence. Entries are enqueued by the fetch side and dequeued
// by the consume side; it is the only structure shared between them.
type resultCache struct {
	mu        sync.Mutex
	entries   []cacheEntry
	nextSeq   uint64
	delivered uint64
}

func newResultCache() *resultCache {
	return &resultCache{}
}

func (c *resultCache) push(results []*types.Result) {
	c.mu.Lock()
	for _, r := range results {
		c.entries = append(c.entries, cacheEntry{result: r, seq: c.nextSeq})
		c.nextSeq++
	}
	c.mu.Unlock()
	metrics.CachedResults.Add(float64(len(results)))
}

// pop removes and returns the oldest result, or nil when the cache is empty.
func (c *resultCache) pop() *types.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return nil
	}
	e := c.entries[0]
	c.entries = c.entries[1:]
	if e.seq < c.delivered {
		// Retry bookkeeping went wrong upstream; refuse to re-deliver.
		return nil
	}
	c.delivered = e.seq + 1
	metrics.CachedResults.Dec()
	return e.result
}

// seqWatermark returns the sequence number the next accepted result will get.
func (c *resultCache) seqWatermark() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextSeq
}

func (c *resultCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// discardUndelivered drops entries that were fetched but never surfaced to
// the caller, returning how many were dropped. Used when a fetch sequence is
// aborted and its rows will be re-fetched after relocation.
func (c *resultCache) discardUndelivered(fromSeq uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	dropped := 0
	for _, e := range c.entries {
		if e.seq >= fromSeq {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
	if dropped > 0 {
		metrics.CachedResults.Sub(float64(dropped))
	}
	return dropped
}
