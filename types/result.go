package types

import "bytes"

// Result is a non-empty ordered sequence of cells sharing one row key.
// Partial marks a row that was split across fetches or by the scan's batch
// setting; the flag is explicit, never inferred.
type Result struct {
	Cells   []*Cell
	Partial bool
}

// NewResult creates a result over the given cells.
func NewResult(cells []*Cell, partial bool) *Result {
	return &Result{Cells: cells, Partial: partial}
}

// Row returns the row key shared by all cells in the result.
func (r *Result) Row() []byte {
	if len(r.Cells) == 0 {
		return nil
	}
	return r.Cells[0].Row
}

// Size returns the number of cells in the result.
func (r *Result) Size() int {
	return len(r.Cells)
}

// HeapSize approximates the serialized size of all cells in the result.
func (r *Result) HeapSize() int64 {
	var n int64
	for _, c := range r.Cells {
		n += c.HeapSize()
	}
	return n
}

// GetValue returns the newest value for (family, qualifier), or nil if the
// result holds no such cell.
func (r *Result) GetValue(family, qualifier []byte) []byte {
	for _, c := range r.Cells {
		if bytes.Equal(c.Family, family) && bytes.Equal(c.Qualifier, qualifier) {
			return c.Value
		}
	}
	return nil
}

// CombineResults flattens results into one ordered cell sequence. This is the
// caller-visible aggregation for point lookups and whole-scan helpers.
func CombineResults(results ...*Result) *Result {
	var cells []*Cell
	for _, r := range results {
		if r == nil {
			continue
		}
		cells = append(cells, r.Cells...)
	}
	return &Result{Cells: cells}
}
