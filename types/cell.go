// Package types defines the cell-level data model shared by the rangekv
// client, the batch-fetch contract, and the region store.
package types

import "bytes"

// Cell is a single versioned value: (row, family, qualifier, timestamp, value).
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp int64
	Value     []byte
}

// HeapSize approximates the serialized size of the cell, used for
// max-result-size accounting on the fetch path.
func (c *Cell) HeapSize() int64 {
	return int64(len(c.Row) + len(c.Family) + len(c.Qualifier) + len(c.Value) + 8)
}

// Equal reports whether two cells are identical coordinate-by-coordinate.
func (c *Cell) Equal(o *Cell) bool {
	return bytes.Equal(c.Row, o.Row) &&
		bytes.Equal(c.Family, o.Family) &&
		bytes.Equal(c.Qualifier, o.Qualifier) &&
		c.Timestamp == o.Timestamp &&
		bytes.Equal(c.Value, o.Value)
}

// CellCoord locates a cell inside one row: family, qualifier, timestamp.
// Used as the resumption marker when a wide row is split across fetches.
type CellCoord struct {
	Family    []byte
	Qualifier []byte
	Timestamp int64
}

// CompareWithinRow orders cells inside one row: family ascending, qualifier
// ascending, timestamp descending (newest first).
func CompareWithinRow(a, b *Cell) int {
	if d := bytes.Compare(a.Family, b.Family); d != 0 {
		return d
	}
	if d := bytes.Compare(a.Qualifier, b.Qualifier); d != 0 {
		return d
	}
	switch {
	case a.Timestamp > b.Timestamp:
		return -1
	case a.Timestamp < b.Timestamp:
		return 1
	}
	return 0
}

// CompareToCoord orders a cell against a coordinate in within-row order.
func (c *Cell) CompareToCoord(coord CellCoord) int {
	if d := bytes.Compare(c.Family, coord.Family); d != 0 {
		return d
	}
	if d := bytes.Compare(c.Qualifier, coord.Qualifier); d != 0 {
		return d
	}
	switch {
	case c.Timestamp > coord.Timestamp:
		return -1
	case c.Timestamp < coord.Timestamp:
		return 1
	}
	return 0
}

// RowComparator returns the row ordering for a scan direction. It is chosen
// once when a scan starts and frozen for the scan's lifetime.
func RowComparator(reversed bool) func(a, b []byte) int {
	if reversed {
		return func(a, b []byte) int { return -bytes.Compare(a, b) }
	}
	return bytes.Compare
}
