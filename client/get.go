package client

import (
	"github.com/rangekv/rangekv/client/errors"
	"github.com/rangekv/rangekv/types"
)

// Get is a point-lookup descriptor. It targets exactly one row and one
// region and shares scan's row-level shaping rules exactly.
type Get struct {
	row []byte

	families            [][]byte
	filter              types.Filter
	maxVersions         int
	maxResultsPerFamily int
	rowOffsetPerFamily  int
}

// NewGet creates a point lookup for the given row.
func NewGet(row []byte) *Get {
	return &Get{
		row:         row,
		maxVersions: 1,
	}
}

// AddFamily restricts the lookup to the given family.
func (g *Get) AddFamily(family []byte) *Get {
	g.families = append(g.families, family)
	return g
}

// SetFilter sets the column predicate applied while shaping the row.
func (g *Get) SetFilter(filter types.Filter) *Get {
	g.filter = filter
	return g
}

// SetMaxVersions sets how many versions per column to return, newest first.
func (g *Get) SetMaxVersions(n int) *Get {
	g.maxVersions = n
	return g
}

// SetMaxResultsPerFamily caps the cells kept per family.
func (g *Get) SetMaxResultsPerFamily(n int) *Get {
	g.maxResultsPerFamily = n
	return g
}

// SetRowOffsetPerFamily skips the first n cells of each family.
func (g *Get) SetRowOffsetPerFamily(n int) *Get {
	g.rowOffsetPerFamily = n
	return g
}

func (g *Get) validate() error {
	if len(g.row) == 0 {
		return errors.New(errors.ErrCodeMalformedScan, "get requires a row key")
	}
	if g.maxResultsPerFamily < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "maxResultsPerFamily must not be negative, got %d", g.maxResultsPerFamily)
	}
	if g.rowOffsetPerFamily < 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "rowOffsetPerFamily must not be negative, got %d", g.rowOffsetPerFamily)
	}
	if g.maxVersions <= 0 {
		return errors.Errorf(errors.ErrCodeMalformedScan, "maxVersions must be positive, got %d", g.maxVersions)
	}
	return nil
}

// asScan expresses the lookup as a single-row scan so the fetch path and
// shaping are shared with range scans.
func (g *Get) asScan() *Scan {
	s := NewScan().WithStartRow(g.row, true).WithStopRow(g.row, true)
	s.families = g.families
	s.filter = g.filter
	s.maxVersions = g.maxVersions
	s.maxResultsPerFamily = g.maxResultsPerFamily
	s.rowOffsetPerFamily = g.rowOffsetPerFamily
	s.small = true
	return s
}
