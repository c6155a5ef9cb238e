// Package region defines region descriptors and the locator contract used by
// the scan client to find the node serving a row key.
package region

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Descriptor identifies a contiguous row-key range [StartKey, EndKey) owned
// by one serving node at a point in time. Generation increases monotonically
// whenever the region is moved or reopened; a mismatch means any location or
// scan handle derived from the old descriptor is stale.
type Descriptor struct {
	ID         uuid.UUID
	Table      string
	StartKey   []byte // inclusive; empty means the table's first row
	EndKey     []byte // exclusive; empty means past the table's last row
	Generation uint64
}

// Contains reports whether row falls inside [StartKey, EndKey).
func (d Descriptor) Contains(row []byte) bool {
	if len(d.StartKey) > 0 && bytes.Compare(row, d.StartKey) < 0 {
		return false
	}
	if len(d.EndKey) > 0 && bytes.Compare(row, d.EndKey) >= 0 {
		return false
	}
	return true
}

// ContainsBefore reports whether the region holds the largest row strictly
// below the given exclusive upper bound, i.e. StartKey < bound <= EndKey.
// An empty bound means past the table's last row and matches the last region.
func (d Descriptor) ContainsBefore(bound []byte) bool {
	if len(bound) == 0 {
		return len(d.EndKey) == 0
	}
	if len(d.StartKey) > 0 && bytes.Compare(bound, d.StartKey) <= 0 {
		return false
	}
	if len(d.EndKey) > 0 && bytes.Compare(bound, d.EndKey) > 0 {
		return false
	}
	return true
}

// IsLast reports whether the region ends at the table's last row.
func (d Descriptor) IsLast() bool {
	return len(d.EndKey) == 0
}

// IsFirst reports whether the region starts at the table's first row.
func (d Descriptor) IsFirst() bool {
	return len(d.StartKey) == 0
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s[%q,%q)#%d", d.Table, d.StartKey, d.EndKey, d.Generation)
}

// Locator resolves a row key to the region presently serving it. Answers are
// advisory: the fetch path must tolerate a stale answer immediately after a
// fresh lookup, and must Invalidate a descriptor before re-locating.
type Locator interface {
	// Locate returns the region for row. With reversed=false the region
	// contains row itself; with reversed=true it contains the largest row
	// strictly below row (row acting as an exclusive upper bound, empty
	// meaning past the table end).
	Locate(ctx context.Context, table string, row []byte, reversed bool) (Descriptor, error)
	// Invalidate drops any cached location derived from d.
	Invalidate(d Descriptor)
}
