package region

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticLocator serves a fixed region layout and counts lookups.
type staticLocator struct {
	regions []Descriptor
	lookups int
}

func (l *staticLocator) Locate(ctx context.Context, table string, row []byte, reversed bool) (Descriptor, error) {
	l.lookups++
	for _, d := range l.regions {
		if reversed {
			if d.ContainsBefore(row) {
				return d, nil
			}
		} else if d.Contains(row) {
			return d, nil
		}
	}
	return Descriptor{}, assert.AnError
}

func (l *staticLocator) Invalidate(d Descriptor) {}

func threeRegions(table string) []Descriptor {
	return []Descriptor{
		{ID: uuid.New(), Table: table, StartKey: nil, EndKey: []byte("m"), Generation: 1},
		{ID: uuid.New(), Table: table, StartKey: []byte("m"), EndKey: []byte("t"), Generation: 1},
		{ID: uuid.New(), Table: table, StartKey: []byte("t"), EndKey: nil, Generation: 1},
	}
}

func TestDescriptorContains(t *testing.T) {
	d := Descriptor{StartKey: []byte("m"), EndKey: []byte("t")}
	assert.False(t, d.Contains([]byte("a")))
	assert.True(t, d.Contains([]byte("m")))
	assert.True(t, d.Contains([]byte("p")))
	assert.False(t, d.Contains([]byte("t")))

	first := Descriptor{EndKey: []byte("m")}
	assert.True(t, first.Contains([]byte("")))
	assert.True(t, first.Contains([]byte("a")))

	last := Descriptor{StartKey: []byte("t")}
	assert.True(t, last.Contains([]byte("zzz")))
}

func TestDescriptorContainsBefore(t *testing.T) {
	d := Descriptor{StartKey: []byte("m"), EndKey: []byte("t")}
	// The region holding the largest row strictly below the bound.
	assert.False(t, d.ContainsBefore([]byte("m")))
	assert.True(t, d.ContainsBefore([]byte("n")))
	assert.True(t, d.ContainsBefore([]byte("t")))
	assert.False(t, d.ContainsBefore([]byte("u")))

	last := Descriptor{StartKey: []byte("t")}
	assert.True(t, last.ContainsBefore(nil))
	assert.True(t, last.ContainsBefore([]byte("zzz")))
	assert.False(t, d.ContainsBefore(nil))
}

func TestCachingLocatorServesFromCache(t *testing.T) {
	inner := &staticLocator{regions: threeRegions("t1")}
	cache := NewCachingLocator(inner)
	ctx := context.Background()

	d1, err := cache.Locate(ctx, "t1", []byte("a"), false)
	require.NoError(t, err)
	d2, err := cache.Locate(ctx, "t1", []byte("b"), false)
	require.NoError(t, err)

	assert.Equal(t, d1.ID, d2.ID)
	assert.Equal(t, 1, inner.lookups)
	assert.Equal(t, 1, cache.CachedCount("t1"))
}

func TestCachingLocatorReverseLookup(t *testing.T) {
	inner := &staticLocator{regions: threeRegions("t1")}
	cache := NewCachingLocator(inner)
	ctx := context.Background()

	// Empty bound means past the table end and resolves to the last region.
	d, err := cache.Locate(ctx, "t1", nil, true)
	require.NoError(t, err)
	assert.True(t, d.IsLast())

	// Crossing the boundary at "t" resolves to the middle region.
	d, err = cache.Locate(ctx, "t1", []byte("t"), true)
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), d.StartKey)
}

func TestCachingLocatorInvalidate(t *testing.T) {
	inner := &staticLocator{regions: threeRegions("t1")}
	cache := NewCachingLocator(inner)
	ctx := context.Background()

	d, err := cache.Locate(ctx, "t1", []byte("p"), false)
	require.NoError(t, err)
	require.Equal(t, 1, inner.lookups)

	cache.Invalidate(d)
	assert.Equal(t, 0, cache.CachedCount("t1"))

	_, err = cache.Locate(ctx, "t1", []byte("p"), false)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.lookups)
}

func TestCachingLocatorDropsOverlapsOnInsert(t *testing.T) {
	inner := &staticLocator{regions: threeRegions("t1")}
	cache := NewCachingLocator(inner)
	ctx := context.Background()

	stale, err := cache.Locate(ctx, "t1", []byte("p"), false)
	require.NoError(t, err)

	// The region splits at "p"; the directory now returns the new halves.
	inner.regions = []Descriptor{
		inner.regions[0],
		{ID: uuid.New(), Table: "t1", StartKey: []byte("m"), EndKey: []byte("p"), Generation: 1},
		{ID: uuid.New(), Table: "t1", StartKey: []byte("p"), EndKey: []byte("t"), Generation: 1},
		inner.regions[2],
	}
	cache.Invalidate(stale)

	low, err := cache.Locate(ctx, "t1", []byte("n"), false)
	require.NoError(t, err)
	high, err := cache.Locate(ctx, "t1", []byte("q"), false)
	require.NoError(t, err)

	assert.NotEqual(t, low.ID, high.ID)
	assert.Equal(t, 2, cache.CachedCount("t1"))
}

func TestCachingLocatorInvalidateTable(t *testing.T) {
	inner := &staticLocator{regions: threeRegions("t1")}
	cache := NewCachingLocator(inner)
	ctx := context.Background()

	_, err := cache.Locate(ctx, "t1", []byte("a"), false)
	require.NoError(t, err)
	_, err = cache.Locate(ctx, "t1", []byte("z"), false)
	require.NoError(t, err)
	require.Equal(t, 2, cache.CachedCount("t1"))

	cache.InvalidateTable("t1")
	assert.Equal(t, 0, cache.CachedCount("t1"))
}
