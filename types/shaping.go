package types

import "bytes"

// ShapeOptions configures row-level result shaping. The same rules apply to
// scans and point lookups; they are evaluated fresh for every row and carry
// no state across rows.
type ShapeOptions struct {
	// Families restricts the result to the listed families. Empty means all
	// families; with a non-empty list, absent families are omitted entirely.
	Families [][]byte
	// Filter is applied per cell after version limiting.
	Filter Filter
	// MaxVersions keeps the newest N versions per (family, qualifier).
	// Zero or negative is treated as 1.
	MaxVersions int
	// MaxResultsPerFamily caps cells kept per family after filter and offset.
	// Zero means unlimited.
	MaxResultsPerFamily int
	// RowOffsetPerFamily skips the first N filter-surviving cells per family.
	RowOffsetPerFamily int
}

func (o ShapeOptions) familyWanted(family []byte) bool {
	if len(o.Families) == 0 {
		return true
	}
	for _, f := range o.Families {
		if bytes.Equal(f, family) {
			return true
		}
	}
	return false
}

// ShapeRow applies family restriction, version limiting, filtering, the
// per-family row offset, and the per-family max-results cap to one row's
// cells. Input cells must be in within-row order (family asc, qualifier asc,
// timestamp desc); the output preserves that order.
//
// Order of evaluation per family: versions, then filter, then offset, then
// cap. An offset past the family's surviving cells truncates the family to
// empty; it is not an error.
func ShapeRow(cells []*Cell, opts ShapeOptions) []*Cell {
	maxVersions := opts.MaxVersions
	if maxVersions <= 0 {
		maxVersions = 1
	}

	var (
		out       []*Cell
		curFamily []byte
		skipped   int
		kept      int
		curQual   []byte
		versions  int
	)

	for _, c := range cells {
		if !opts.familyWanted(c.Family) {
			continue
		}

		if curFamily == nil || !bytes.Equal(c.Family, curFamily) {
			curFamily = c.Family
			skipped, kept = 0, 0
			curQual, versions = nil, 0
		}

		if curQual == nil || !bytes.Equal(c.Qualifier, curQual) {
			curQual = c.Qualifier
			versions = 0
		}
		versions++
		if versions > maxVersions {
			continue
		}

		if opts.Filter != nil && !opts.Filter.MatchCell(c) {
			continue
		}

		if skipped < opts.RowOffsetPerFamily {
			skipped++
			continue
		}

		if opts.MaxResultsPerFamily > 0 && kept >= opts.MaxResultsPerFamily {
			continue
		}
		kept++
		out = append(out, c)
	}

	return out
}
