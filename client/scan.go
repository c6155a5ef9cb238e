// Package client implements the rangekv scan client: descriptor construction,
// the scan driver with relocation retry, result caching, and the optional
// background prefetcher.
package client

import (
	"github.com/rangekv/rangekv/client/errors"
	"github.com/rangekv/rangekv/types"
)

const (
	// DefaultCaching is the per-RPC row count hint used when a scan does not
	// set one.
	DefaultCaching = 100
	// DefaultMaxResultSize is the per-RPC byte cap used when a scan does not
	// set one.
	DefaultMaxResultSize int64 = 2 * 1024 * 1024
)

// Scan is the immutable query specification for a range scan. Build it with
// NewScan and the fluent setters; it is validated when a scanner is created
// and must not be mutated afterwards.
type Scan struct {
	startRow       []byte
	startInclusive bool
	stopRow        []byte
	stopInclusive  bool
	reversed       bool
	small          bool
	asyncPrefetch  bool

	families            [][]byte
	filter              types.Filter
	maxVersions         int
	batch               int
	caching             int
	maxResultSize       int64
	maxResultsPerFamily int
	rowOffsetPerFamily  int
}

// NewScan creates a whole-table scan with default settings.
func NewScan() *Scan {
	return &Scan{
		startInclusive: true,
		stopInclusive:  false,
		maxVersions:    1,
		caching:        DefaultCaching,
		maxResultSize:  DefaultMaxResultSize,
	}
}

// WithStartRow sets the row the scan starts from. For reversed scans this is
// the high end of the range.
func (s *Scan) WithStartRow(row []byte, inclusive bool) *Scan {
	s.startRow = row
	s.startInclusive = inclusive
	return s
}

// WithStopRow sets the row the scan stops at. For reversed scans this is the
// low end of the range.
func (s *Scan) WithStopRow(row []byte, inclusive bool) *Scan {
	s.stopRow = row
	s.stopInclusive = inclusive
	return s
}

// SetReversed makes the scan run from high keys to low keys.
func (s *Scan) SetReversed(reversed bool) *Scan {
	s.reversed = reversed
	return s
}

// SetSmall enables the single-round-trip whole-scan optimization. It never
// changes the rows or cells a scan observes.
func (s *Scan) SetSmall(small bool) *Scan {
	s.small = small
	return s
}

// SetAsyncPrefetch enables background prefetching into the result cache.
func (s *Scan) SetAsyncPrefetch(async bool) *Scan {
	s.asyncPrefetch = async
	return s
}

// AddFamily restricts the scan to the given family. May be called multiple
// times; families not added are omitted entirely.
func (s *Scan) AddFamily(family []byte) *Scan {
	s.families = append(s.families, family)
	return s
}

// SetFilter sets the column predicate applied while shaping each row.
func (s *Scan) SetFilter(filter types.Filter) *Scan {
	s.filter = filter
	return s
}

// SetMaxVersions sets how many versions per column to return, newest first.
func (s *Scan) SetMaxVersions(n int) *Scan {
	s.maxVersions = n
	return s
}

// SetAllVersions returns every version of every column.
func (s *Scan) SetAllVersions() *Scan {
	s.maxVersions = int(^uint(0) >> 1)
	return s
}

// SetBatch caps the cells per result, splitting one wide row across multiple
// consumer-visible results.
func (s *Scan) SetBatch(batch int) *Scan {
	s.batch = batch
	return s
}

// SetCaching sets the row-count hint per fetch RPC.
func (s *Scan) SetCaching(caching int) *Scan {
	s.caching = caching
	return s
}

// SetMaxResultSize sets the hard byte cap per fetch RPC response.
func (s *Scan) SetMaxResultSize(size int64) *Scan {
	s.maxResultSize = size
	return s
}

// SetMaxResultsPerFamily caps the cells kept per family in each row.
func (s *Scan) SetMaxResultsPerFamily(n int) *Scan {
	s.maxResultsPerFamily = n
	return s
}

// SetRowOffsetPerFamily skips the first n cells of each family in each row.
func (s *Scan) SetRowOffsetPerFamily(n int) *Scan {
	s.rowOffsetPerFamily = n
	return s
}

// shapeOptions derives the row shaping applied on the fetch path.
func (s *Scan) shapeOptions() types.ShapeOptions {
	return types.ShapeOptions{
		Families:            s.families,
		Filter:              s.filter,
		MaxVersions:         s.maxVersions,
		MaxResultsPerFamily: s.maxResultsPerFamily,
		RowOffsetPerFamily:  s.rowOffsetPerFamily,
	}
}

// validate rejects malformed descriptors before any RPC is issued.
func (s *Scan) validate() error {
	if s.maxResultsPerFamily < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "maxResultsPerFamily must not be negative, got %d", s.maxResultsPerFamily)
	}
	if s.rowOffsetPerFamily < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "rowOffsetPerFamily must not be negative, got %d", s.rowOffsetPerFamily)
	}
	if s.batch < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "batch must not be negative, got %d", s.batch)
	}
	if s.caching < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "caching must not be negative, got %d", s.caching)
	}
	if s.maxResultSize < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "maxResultSize must not be negative, got %d", s.maxResultSize)
	}
	if s.maxVersions <= 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "maxVersions must be positive, got %d", s.maxVersions)
	}
	if len(s.startRow) > 0 && len(s.stopRow) > 0 {
		cmp := types.RowComparator(s.reversed)
		if cmp(s.startRow, s.stopRow) > 0 {
			return errors.Errorf(errors.ErrCodeMalformedScan,
				"start row %q is past stop row %q for this scan direction", s.startRow, s.stopRow)
		}
	}
	return nil
}
