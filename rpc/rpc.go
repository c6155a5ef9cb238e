// Package rpc defines the batch-fetch contract between the scan client and a
// region's serving node: open a server-side cursor, fetch size-bounded
// batches, and close the cursor. The storage engine behind it is a
// collaborator; the reference implementation lives in the storage package.
package rpc

import (
	"context"

	"github.com/google/uuid"

	"github.com/rangekv/rangekv/region"
	"github.com/rangekv/rangekv/types"
)

// ScanRequest describes one region's portion of a scan. Start and stop are
// expressed in scan direction: for reversed scans StartKey is the high end.
type ScanRequest struct {
	Table          string
	Region         region.Descriptor
	StartKey       []byte
	StartInclusive bool
	StopKey        []byte
	StopInclusive  bool
	Reversed       bool

	Shape types.ShapeOptions

	// Caching is the row-count hint per fetch; MaxResultSize is the hard
	// byte cap per response. The node stops filling a response at whichever
	// limit is reached first.
	Caching       int
	MaxResultSize int64

	// ResumeRow, when set, resumes a row that was cut mid-row by the byte
	// cap: the node re-shapes the row and returns only cells strictly after
	// ResumeAfter in within-row order.
	ResumeRow   []byte
	ResumeAfter types.CellCoord
}

// Handle is a lease-backed server-side cursor. It must be closed on every
// exit path; Close is idempotent and best-effort.
type Handle struct {
	ID     uuid.UUID
	Region region.Descriptor
}

// Batch is one fetch round trip's worth of rows. MoreInRegion=false signals
// region exhaustion; a response truncated by the byte cap mid-row carries a
// final partial result and MoreInRegion=true.
type Batch struct {
	Results      []*types.Result
	MoreInRegion bool
	SizeEstimate int64
}

// Fetcher performs the batch-fetch protocol against region serving nodes.
//
// Open fails with a not-serving-region error when the target node no longer
// owns the range, or with a handle-expired error when reopening after lease
// timeout; both are recoverable by re-locating. SmallScan collapses
// open+fetch+close into one round trip; when the range does not fit the byte
// cap it returns what fits with MoreInRegion=true and the caller falls back
// to the regular protocol.
type Fetcher interface {
	Open(ctx context.Context, req *ScanRequest) (Handle, error)
	FetchNext(ctx context.Context, h Handle) (Batch, error)
	Close(ctx context.Context, h Handle)
	SmallScan(ctx context.Context, req *ScanRequest) (Batch, error)
}
