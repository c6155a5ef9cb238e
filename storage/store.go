// Package storage provides the pebble-backed reference region store. It
// implements both collaborator contracts the scan client depends on, the
// batch-fetch protocol (rpc.Fetcher) and the partition directory
// (region.Locator), and backs the integration tests and the demo server.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"

	scanerrors "github.com/rangekv/rangekv/client/errors"
	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/region"
	"github.com/rangekv/rangekv/types"
)

// Config holds the region store configuration.
type Config struct {
	Path         string
	InMemory     bool // use an in-memory filesystem; Path is ignored
	CacheSize    int64
	MemTableSize uint64
	LeaseTimeout time.Duration
}

// DefaultConfig returns a configuration suitable for a standalone store.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:         path,
		CacheSize:    64 * 1024 * 1024,
		MemTableSize: 16 * 1024 * 1024,
		LeaseTimeout: time.Minute,
	}
}

// TestConfig returns an in-memory configuration for tests.
func TestConfig() *Config {
	cfg := DefaultConfig("")
	cfg.InMemory = true
	return cfg
}

// RegionStore is a single-process, multi-region table store over pebble.
// Region boundaries and generations are kept in memory; cell data lives in
// one pebble keyspace. Split and reopen hooks let tests drive the relocation
// paths of the scan client.
type RegionStore struct {
	db *pebble.DB

	mu       sync.Mutex
	tables   map[string][]region.Descriptor // sorted by StartKey
	scanners map[uuid.UUID]*scannerLease
	closed   bool

	leaseTimeout time.Duration
	now          func() time.Time
}

// NewRegionStore opens the store.
func NewRegionStore(cfg *Config) (*RegionStore, error) {
	cache := pebble.NewCache(cfg.CacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:        cache,
		MemTableSize: cfg.MemTableSize,
	}
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}

	leaseTimeout := cfg.LeaseTimeout
	if leaseTimeout <= 0 {
		leaseTimeout = time.Minute
	}

	return &RegionStore{
		db:           db,
		tables:       make(map[string][]region.Descriptor),
		scanners:     make(map[uuid.UUID]*scannerLease),
		leaseTimeout: leaseTimeout,
		now:          time.Now,
	}, nil
}

// Shutdown releases the store. Close with handle arguments is the fetcher
// protocol's scanner close; this is the process-lifecycle one.
func (s *RegionStore) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pebble close: %w", err)
	}
	return nil
}

// CreateTable registers a table pre-split at the given keys. Split keys must
// be distinct and sorted; n split keys produce n+1 regions.
func (s *RegionStore) CreateTable(name string, splitKeys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; ok {
		return fmt.Errorf("table %q already exists", name)
	}

	sorted := make([][]byte, len(splitKeys))
	copy(sorted, splitKeys)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	bounds := append([][]byte{nil}, sorted...)
	regions := make([]region.Descriptor, 0, len(bounds))
	for i, start := range bounds {
		var end []byte
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		regions = append(regions, region.Descriptor{
			ID:         uuid.New(),
			Table:      name,
			StartKey:   start,
			EndKey:     end,
			Generation: 1,
		})
	}
	s.tables[name] = regions
	logger.Info("table created", "table", name, "regions", len(regions))
	return nil
}

// Put writes cells. Cells must carry explicit timestamps.
func (s *RegionStore) Put(ctx context.Context, table string, cells []*types.Cell) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, c := range cells {
		if err := batch.Set(encodeCellKey(table, c), c.Value, nil); err != nil {
			return fmt.Errorf("stage cell: %w", err)
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("commit puts: %w", err)
	}
	return nil
}

// DeleteFamily removes every version of every column in the family with
// timestamp at or below upToTS. The reference store applies deletes
// physically; tombstone compaction is outside its scope.
func (s *RegionStore) DeleteFamily(ctx context.Context, table string, row, family []byte, upToTS int64) error {
	if err := s.checkTable(table); err != nil {
		return err
	}
	prefix := appendEscaped(encodeRowPrefix(table, row), family)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixSuccessor(prefix),
	})
	if err != nil {
		return fmt.Errorf("delete iterator: %w", err)
	}
	defer iter.Close()

	tablePrefix := encodeTablePrefix(table)
	batch := s.db.NewBatch()
	defer batch.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		cell, err := decodeCellKey(tablePrefix, iter.Key())
		if err != nil {
			return err
		}
		if cell.Timestamp <= upToTS {
			if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
				return fmt.Errorf("stage delete: %w", err)
			}
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("commit deletes: %w", err)
	}
	return nil
}

// Locate implements region.Locator. The store is the authoritative
// directory, so Invalidate is a no-op here; staleness is introduced by
// client-side caching plus the split/reopen hooks.
func (s *RegionStore) Locate(ctx context.Context, table string, row []byte, reversed bool) (region.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions, ok := s.tables[table]
	if !ok {
		return region.Descriptor{}, fmt.Errorf("unknown table %q", table)
	}
	for _, d := range regions {
		if reversed {
			if d.ContainsBefore(row) {
				return d, nil
			}
		} else if d.Contains(row) {
			return d, nil
		}
	}
	return region.Descriptor{}, fmt.Errorf("no region for row %q in table %q", row, table)
}

// Invalidate implements region.Locator.
func (s *RegionStore) Invalidate(d region.Descriptor) {}

// Regions returns the current region layout of a table.
func (s *RegionStore) Regions(table string) []region.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]region.Descriptor, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// SplitRegion splits the region containing splitKey into two new regions.
// Open scan handles on the old region observe a not-serving failure on their
// next fetch.
func (s *RegionStore) SplitRegion(table string, splitKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for i, d := range regions {
		if !d.Contains(splitKey) {
			continue
		}
		if len(d.StartKey) > 0 && bytes.Equal(d.StartKey, splitKey) {
			return fmt.Errorf("split key %q is already a region boundary", splitKey)
		}
		low := region.Descriptor{ID: uuid.New(), Table: table, StartKey: d.StartKey, EndKey: splitKey, Generation: 1}
		high := region.Descriptor{ID: uuid.New(), Table: table, StartKey: splitKey, EndKey: d.EndKey, Generation: 1}
		s.tables[table] = append(regions[:i:i], append([]region.Descriptor{low, high}, regions[i+1:]...)...)
		logger.Info("region split", "table", table, "parent", d.String())
		return nil
	}
	return fmt.Errorf("no region contains split key %q", splitKey)
}

// ReopenRegion closes and reopens the region containing row, bumping its
// generation. Locations and scan handles derived from the old descriptor
// become stale, exactly as if the region had moved.
func (s *RegionStore) ReopenRegion(table string, row []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for i, d := range regions {
		if d.Contains(row) {
			regions[i].Generation++
			logger.Info("region reopened", "table", table, "region", regions[i].String())
			return nil
		}
	}
	return fmt.Errorf("no region contains row %q", row)
}

// ExpireScanners force-expires every open scan lease. Test hook.
func (s *RegionStore) ExpireScanners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	past := s.now().Add(-time.Second)
	for _, lease := range s.scanners {
		lease.expires = past
	}
}

// OpenScannerCount returns the number of live scan leases. Test hook.
func (s *RegionStore) OpenScannerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scanners)
}

func (s *RegionStore) checkTable(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

// checkRegionLocked verifies the request's region descriptor is still
// current: same id, same generation.
func (s *RegionStore) checkRegionLocked(d region.Descriptor) error {
	for _, cur := range s.tables[d.Table] {
		if cur.ID == d.ID {
			if cur.Generation != d.Generation {
				return scanerrors.Errorf(scanerrors.ErrCodeNotServingRegion,
					"region %s reopened at generation %d", d.String(), cur.Generation)
			}
			return nil
		}
	}
	return scanerrors.Errorf(scanerrors.ErrCodeNotServingRegion, "region %s no longer served", d.String())
}
