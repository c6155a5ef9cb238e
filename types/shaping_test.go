package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cell(row, family string, qualifier string, ts int64, value string) *Cell {
	return &Cell{
		Row:       []byte(row),
		Family:    []byte(family),
		Qualifier: []byte(qualifier),
		Timestamp: ts,
		Value:     []byte(value),
	}
}

// wideRow builds one row with f1 carrying 10 columns and f2 carrying 20, in
// within-row order.
func wideRow(row string) []*Cell {
	var cells []*Cell
	for i := 0; i < 10; i++ {
		cells = append(cells, cell(row, "f1", fmt.Sprintf("q%02d", i), 1, "v"))
	}
	for i := 0; i < 20; i++ {
		cells = append(cells, cell(row, "f2", fmt.Sprintf("q%02d", i), 1, "v"))
	}
	return cells
}

func qualifiers(cells []*Cell) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, string(c.Family)+":"+string(c.Qualifier))
	}
	return out
}

func TestShapeRowMaxResultsPerFamily(t *testing.T) {
	cells := wideRow("r1")

	tests := []struct {
		max     int
		wantF1  int
		wantF2  int
	}{
		{max: 0, wantF1: 10, wantF2: 20},
		{max: 1, wantF1: 1, wantF2: 1},
		{max: 5, wantF1: 5, wantF2: 5},
		{max: 10, wantF1: 10, wantF2: 10},
		{max: 20, wantF1: 10, wantF2: 20},
		{max: 100, wantF1: 10, wantF2: 20},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d", tt.max), func(t *testing.T) {
			out := ShapeRow(cells, ShapeOptions{MaxResultsPerFamily: tt.max})
			f1, f2 := 0, 0
			for _, c := range out {
				switch string(c.Family) {
				case "f1":
					f1++
				case "f2":
					f2++
				}
			}
			assert.Equal(t, tt.wantF1, f1)
			assert.Equal(t, tt.wantF2, f2)
		})
	}
}

func TestShapeRowRowOffsetPerFamily(t *testing.T) {
	cells := wideRow("r1")

	tests := []struct {
		offset int
		wantF1 int
		wantF2 int
	}{
		{offset: 0, wantF1: 10, wantF2: 20},
		{offset: 4, wantF1: 6, wantF2: 16},
		{offset: 10, wantF1: 0, wantF2: 10},
		// Offset past every column truncates to empty; no error.
		{offset: 20, wantF1: 0, wantF2: 0},
		{offset: 100, wantF1: 0, wantF2: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("offset=%d", tt.offset), func(t *testing.T) {
			out := ShapeRow(cells, ShapeOptions{RowOffsetPerFamily: tt.offset})
			f1, f2 := 0, 0
			for _, c := range out {
				switch string(c.Family) {
				case "f1":
					f1++
				case "f2":
					f2++
				}
			}
			assert.Equal(t, tt.wantF1, f1)
			assert.Equal(t, tt.wantF2, f2)
		})
	}
}

func TestShapeRowOffsetThenCap(t *testing.T) {
	cells := wideRow("r1")
	out := ShapeRow(cells, ShapeOptions{RowOffsetPerFamily: 4, MaxResultsPerFamily: 5})
	require.Equal(t, []string{
		"f1:q04", "f1:q05", "f1:q06", "f1:q07", "f1:q08",
		"f2:q04", "f2:q05", "f2:q06", "f2:q07", "f2:q08",
	}, qualifiers(out))
}

func TestShapeRowFilterAppliesBeforeOffset(t *testing.T) {
	cells := wideRow("r1")
	// Keep q05..q09 of each family, then skip 2 of the survivors.
	filter := NewColumnRangeFilter([]byte("q05"), true, []byte("q09"), true)
	out := ShapeRow(cells, ShapeOptions{Filter: filter, RowOffsetPerFamily: 2})
	require.Equal(t, []string{
		"f1:q07", "f1:q08", "f1:q09",
		"f2:q07", "f2:q08", "f2:q09",
	}, qualifiers(out))
}

func TestShapeRowFamilyRestriction(t *testing.T) {
	cells := wideRow("r1")
	out := ShapeRow(cells, ShapeOptions{Families: [][]byte{[]byte("f2")}})
	require.Len(t, out, 20)
	for _, c := range out {
		assert.Equal(t, "f2", string(c.Family))
	}

	out = ShapeRow(cells, ShapeOptions{Families: [][]byte{[]byte("nope")}})
	assert.Empty(t, out)
}

func TestShapeRowMaxVersions(t *testing.T) {
	cells := []*Cell{
		cell("r1", "f1", "q1", 30, "v30"),
		cell("r1", "f1", "q1", 20, "v20"),
		cell("r1", "f1", "q1", 10, "v10"),
		cell("r1", "f1", "q2", 5, "v5"),
	}

	out := ShapeRow(cells, ShapeOptions{})
	require.Equal(t, []string{"f1:q1", "f1:q2"}, qualifiers(out))
	assert.Equal(t, int64(30), out[0].Timestamp)

	out = ShapeRow(cells, ShapeOptions{MaxVersions: 2})
	require.Len(t, out, 3)
	assert.Equal(t, int64(30), out[0].Timestamp)
	assert.Equal(t, int64(20), out[1].Timestamp)

	out = ShapeRow(cells, ShapeOptions{MaxVersions: 10})
	assert.Len(t, out, 4)
}

func TestShapeRowVersionsCountedBeforeFilter(t *testing.T) {
	// The newest version fails the filter; with maxVersions=1 the older
	// passing version must NOT sneak in, because version limiting runs first.
	cells := []*Cell{
		cell("r1", "f1", "q1", 20, "new"),
		cell("r1", "f1", "q1", 10, "old"),
	}
	filter := filterFunc(func(c *Cell) bool { return string(c.Value) != "new" })
	out := ShapeRow(cells, ShapeOptions{Filter: filter, MaxVersions: 1})
	assert.Empty(t, out)
}

type filterFunc func(*Cell) bool

func (f filterFunc) MatchCell(c *Cell) bool { return f(c) }

func TestColumnPrefixFilter(t *testing.T) {
	f := NewColumnPrefixFilter([]byte("q0"))
	assert.True(t, f.MatchCell(cell("r", "f", "q01", 1, "v")))
	assert.False(t, f.MatchCell(cell("r", "f", "q10", 1, "v")))
}

func TestColumnRangeFilterBounds(t *testing.T) {
	tests := []struct {
		name      string
		min, max  string
		minIncl   bool
		maxIncl   bool
		qualifier string
		want      bool
	}{
		{"inside", "b", "d", true, true, "c", true},
		{"at min inclusive", "b", "d", true, true, "b", true},
		{"at min exclusive", "b", "d", false, true, "b", false},
		{"at max inclusive", "b", "d", true, true, "d", true},
		{"at max exclusive", "b", "d", true, false, "d", false},
		{"below", "b", "d", true, true, "a", false},
		{"above", "b", "d", true, true, "e", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewColumnRangeFilter([]byte(tt.min), tt.minIncl, []byte(tt.max), tt.maxIncl)
			got := f.MatchCell(cell("r", "f", tt.qualifier, 1, "v"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnRangeFilterUnbounded(t *testing.T) {
	f := NewColumnRangeFilter(nil, true, []byte("m"), false)
	assert.True(t, f.MatchCell(cell("r", "f", "a", 1, "v")))
	assert.False(t, f.MatchCell(cell("r", "f", "z", 1, "v")))

	f = NewColumnRangeFilter([]byte("m"), true, nil, false)
	assert.False(t, f.MatchCell(cell("r", "f", "a", 1, "v")))
	assert.True(t, f.MatchCell(cell("r", "f", "z", 1, "v")))
}

func TestCombineResults(t *testing.T) {
	r1 := NewResult([]*Cell{cell("r1", "f1", "q1", 1, "a")}, true)
	r2 := NewResult([]*Cell{cell("r1", "f1", "q2", 1, "b")}, false)
	combined := CombineResults(r1, nil, r2)
	require.Equal(t, 2, combined.Size())
	assert.Equal(t, []byte("r1"), combined.Row())
	assert.Equal(t, []byte("b"), combined.GetValue([]byte("f1"), []byte("q2")))
	assert.Nil(t, combined.GetValue([]byte("f1"), []byte("q9")))
}
