package types

import "bytes"

// Filter is a predicate over a row's columns, evaluated per cell before the
// per-family offset and max-results caps.
type Filter interface {
	MatchCell(c *Cell) bool
}

// ColumnRangeFilter keeps cells whose qualifier falls in [Min, Max] with
// independent inclusivity. A nil Min or Max leaves that side unbounded.
type ColumnRangeFilter struct {
	Min          []byte
	MinInclusive bool
	Max          []byte
	MaxInclusive bool
}

// NewColumnRangeFilter builds a qualifier range filter.
func NewColumnRangeFilter(min []byte, minInclusive bool, max []byte, maxInclusive bool) *ColumnRangeFilter {
	return &ColumnRangeFilter{Min: min, MinInclusive: minInclusive, Max: max, MaxInclusive: maxInclusive}
}

// MatchCell implements Filter.
func (f *ColumnRangeFilter) MatchCell(c *Cell) bool {
	if f.Min != nil {
		d := bytes.Compare(c.Qualifier, f.Min)
		if d < 0 || (d == 0 && !f.MinInclusive) {
			return false
		}
	}
	if f.Max != nil {
		d := bytes.Compare(c.Qualifier, f.Max)
		if d > 0 || (d == 0 && !f.MaxInclusive) {
			return false
		}
	}
	return true
}

// ColumnPrefixFilter keeps cells whose qualifier starts with Prefix.
type ColumnPrefixFilter struct {
	Prefix []byte
}

// NewColumnPrefixFilter builds a qualifier prefix filter.
func NewColumnPrefixFilter(prefix []byte) *ColumnPrefixFilter {
	return &ColumnPrefixFilter{Prefix: prefix}
}

// MatchCell implements Filter.
func (f *ColumnPrefixFilter) MatchCell(c *Cell) bool {
	return bytes.HasPrefix(c.Qualifier, f.Prefix)
}
