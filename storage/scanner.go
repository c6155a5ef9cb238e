package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	scanerrors "github.com/rangekv/rangekv/client/errors"
	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/rpc"
	"github.com/rangekv/rangekv/types"
)

// scannerLease is one server-side cursor. The lease owns the scan position;
// the client only ever sees opaque handles. Expiry is renewed on every fetch.
type scannerLease struct {
	id      uuid.UUID
	req     rpc.ScanRequest
	pos     position
	expires time.Time
}

// position is the cursor inside the region, expressed as a row bound in scan
// direction: for forward scans row is the lowest candidate, for reversed
// scans the highest. A nil row with inclusive=false on a reversed scan means
// "from the table end".
type position struct {
	row       []byte
	inclusive bool

	// resumeRow/resumeAfter survive exactly until the marked row is served
	// again; the row is re-shaped and cells at or before the coordinate are
	// dropped.
	resumeRow   []byte
	resumeAfter types.CellCoord

	exhausted bool
}

// initPosition derives the opening cursor from the request, clamped to the
// region the lease serves.
func initPosition(req *rpc.ScanRequest) position {
	pos := position{row: req.StartKey, inclusive: req.StartInclusive}
	if len(req.ResumeRow) > 0 {
		pos = position{
			row:         req.ResumeRow,
			inclusive:   true,
			resumeRow:   req.ResumeRow,
			resumeAfter: req.ResumeAfter,
		}
	}

	r := req.Region
	if !req.Reversed {
		if len(pos.row) == 0 {
			pos.row, pos.inclusive = r.StartKey, true
		} else if len(r.StartKey) > 0 && bytes.Compare(pos.row, r.StartKey) < 0 {
			pos.row, pos.inclusive = r.StartKey, true
		}
		return pos
	}
	if len(pos.row) == 0 {
		pos.row, pos.inclusive = r.EndKey, false
	} else if len(r.EndKey) > 0 && bytes.Compare(pos.row, r.EndKey) >= 0 {
		pos.row, pos.inclusive = r.EndKey, false
	}
	return pos
}

// Open implements rpc.Fetcher.
func (s *RegionStore) Open(ctx context.Context, req *rpc.ScanRequest) (rpc.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRegionLocked(req.Region); err != nil {
		return rpc.Handle{}, err
	}

	lease := &scannerLease{
		id:      uuid.New(),
		req:     *req,
		pos:     initPosition(req),
		expires: s.now().Add(s.leaseTimeout),
	}
	s.scanners[lease.id] = lease
	logger.DebugContext(ctx, "scanner lease opened",
		"lease_id", lease.id, "region", req.Region.String())
	return rpc.Handle{ID: lease.id, Region: req.Region}, nil
}

// FetchNext implements rpc.Fetcher. A fetch either fully succeeds, with the
// lease position advanced past everything returned, or fails having returned
// nothing and moved nothing.
func (s *RegionStore) FetchNext(ctx context.Context, h rpc.Handle) (rpc.Batch, error) {
	s.mu.Lock()
	lease, ok := s.scanners[h.ID]
	if !ok || s.now().After(lease.expires) {
		delete(s.scanners, h.ID)
		s.mu.Unlock()
		return rpc.Batch{}, scanerrors.Errorf(scanerrors.ErrCodeScanHandleExpired,
			"scanner lease %s expired or unknown", h.ID)
	}
	if err := s.checkRegionLocked(lease.req.Region); err != nil {
		delete(s.scanners, h.ID)
		s.mu.Unlock()
		return rpc.Batch{}, err
	}
	lease.expires = s.now().Add(s.leaseTimeout)
	s.mu.Unlock()

	// Only one fetch per handle is in flight at a time, so the position can
	// be read and advanced without the store lock. Mutate a copy and commit
	// it on success to keep the fetch all-or-nothing.
	pos := lease.pos
	batch, err := s.fillBatch(&lease.req, &pos)
	if err != nil {
		return rpc.Batch{}, err
	}
	lease.pos = pos
	return batch, nil
}

// Close implements rpc.Fetcher. Idempotent.
func (s *RegionStore) Close(ctx context.Context, h rpc.Handle) {
	s.mu.Lock()
	delete(s.scanners, h.ID)
	s.mu.Unlock()
}

// SmallScan implements rpc.Fetcher: open, fetch and close collapsed into one
// round trip, with no lease left behind. The byte cap still applies; a range
// that does not fit comes back truncated with MoreInRegion=true.
func (s *RegionStore) SmallScan(ctx context.Context, req *rpc.ScanRequest) (rpc.Batch, error) {
	s.mu.Lock()
	if err := s.checkRegionLocked(req.Region); err != nil {
		s.mu.Unlock()
		return rpc.Batch{}, err
	}
	s.mu.Unlock()

	pos := initPosition(req)
	return s.fillBatch(req, &pos)
}

// fillBatch reads rows at pos until the caching row hint or the byte cap is
// reached, advancing pos past everything it returns. When the byte cap lands
// mid-row the final result is marked partial and pos carries a resume marker
// for the cut row.
func (s *RegionStore) fillBatch(req *rpc.ScanRequest, pos *position) (rpc.Batch, error) {
	tablePrefix := encodeTablePrefix(req.Table)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: tablePrefix,
		UpperBound: prefixSuccessor(tablePrefix),
	})
	if err != nil {
		return rpc.Batch{}, scanerrors.Wrap(err, scanerrors.ErrCodeIOFailure, "fillBatch", "open scan iterator")
	}
	defer iter.Close()

	var (
		results []*types.Result
		size    int64
	)
	more := true
	for {
		if pos.exhausted {
			more = false
			break
		}
		if req.Caching > 0 && len(results) >= req.Caching {
			break
		}

		row, ok, err := nextRow(iter, tablePrefix, req, pos)
		if err != nil {
			return rpc.Batch{}, err
		}
		if !ok {
			pos.exhausted = true
			more = false
			break
		}

		raw, err := readRowCells(iter, tablePrefix, req.Table, row)
		if err != nil {
			return rpc.Batch{}, err
		}
		shaped := types.ShapeRow(raw, req.Shape)
		if pos.resumeRow != nil && bytes.Equal(row, pos.resumeRow) {
			shaped = cellsAfterCoord(shaped, pos.resumeAfter)
		}
		pos.resumeRow = nil
		pos.row, pos.inclusive = row, false

		if len(shaped) == 0 {
			continue
		}

		cut := len(shaped)
		if req.MaxResultSize > 0 {
			for i, c := range shaped {
				size += c.HeapSize()
				if size >= req.MaxResultSize {
					cut = i + 1
					break
				}
			}
		} else {
			for _, c := range shaped {
				size += c.HeapSize()
			}
		}

		if cut < len(shaped) {
			part := shaped[:cut]
			last := part[cut-1]
			results = append(results, types.NewResult(part, true))
			pos.row, pos.inclusive = row, true
			pos.resumeRow = row
			pos.resumeAfter = types.CellCoord{
				Family:    last.Family,
				Qualifier: last.Qualifier,
				Timestamp: last.Timestamp,
			}
			break
		}

		results = append(results, types.NewResult(shaped, false))
		if req.MaxResultSize > 0 && size >= req.MaxResultSize {
			break
		}
	}
	return rpc.Batch{Results: results, MoreInRegion: more, SizeEstimate: size}, nil
}

// nextRow seeks to the next row at or past pos in scan direction, checking
// region and stop bounds. On success the iterator is positioned at the row's
// first cell.
func nextRow(iter *pebble.Iterator, tablePrefix []byte, req *rpc.ScanRequest, pos *position) ([]byte, bool, error) {
	if !req.Reversed {
		var seekKey []byte
		switch {
		case len(pos.row) == 0:
			seekKey = tablePrefix
		case pos.inclusive:
			seekKey = encodeRowPrefix(req.Table, pos.row)
		default:
			seekKey = prefixSuccessor(encodeRowPrefix(req.Table, pos.row))
		}
		if !iter.SeekGE(seekKey) {
			return nil, false, nil
		}
		row, err := decodeRowOfKey(tablePrefix, iter.Key())
		if err != nil {
			return nil, false, scanerrors.Wrap(err, scanerrors.ErrCodeIOFailure, "nextRow", "corrupt cell key")
		}
		if len(req.Region.EndKey) > 0 && bytes.Compare(row, req.Region.EndKey) >= 0 {
			return nil, false, nil
		}
		if len(req.StopKey) > 0 {
			if d := bytes.Compare(row, req.StopKey); d > 0 || (d == 0 && !req.StopInclusive) {
				return nil, false, nil
			}
		}
		return row, true, nil
	}

	var boundKey []byte
	switch {
	case len(pos.row) == 0 && !pos.inclusive:
		boundKey = prefixSuccessor(tablePrefix)
	case pos.inclusive:
		boundKey = prefixSuccessor(encodeRowPrefix(req.Table, pos.row))
	default:
		boundKey = encodeRowPrefix(req.Table, pos.row)
	}
	if !iter.SeekLT(boundKey) {
		return nil, false, nil
	}
	row, err := decodeRowOfKey(tablePrefix, iter.Key())
	if err != nil {
		return nil, false, scanerrors.Wrap(err, scanerrors.ErrCodeIOFailure, "nextRow", "corrupt cell key")
	}
	if len(req.Region.StartKey) > 0 && bytes.Compare(row, req.Region.StartKey) < 0 {
		return nil, false, nil
	}
	if len(req.StopKey) > 0 {
		if d := bytes.Compare(row, req.StopKey); d < 0 || (d == 0 && !req.StopInclusive) {
			return nil, false, nil
		}
	}
	// Cells are stored in forward order; rewind to the row's first cell.
	iter.SeekGE(encodeRowPrefix(req.Table, row))
	return row, true, nil
}

// readRowCells drains the iterator through the end of row, copying values out
// of iterator-owned buffers. Cells come back in within-row order.
func readRowCells(iter *pebble.Iterator, tablePrefix []byte, table string, row []byte) ([]*types.Cell, error) {
	rowPrefix := encodeRowPrefix(table, row)
	var cells []*types.Cell
	for ; iter.Valid() && bytes.HasPrefix(iter.Key(), rowPrefix); iter.Next() {
		cell, err := decodeCellKey(tablePrefix, iter.Key())
		if err != nil {
			return nil, scanerrors.Wrap(err, scanerrors.ErrCodeIOFailure, "readRowCells", "corrupt cell key")
		}
		cell.Value = append([]byte(nil), iter.Value()...)
		cells = append(cells, cell)
	}
	return cells, nil
}

// cellsAfterCoord keeps only cells strictly after coord in within-row order.
func cellsAfterCoord(cells []*types.Cell, coord types.CellCoord) []*types.Cell {
	var out []*types.Cell
	for _, c := range cells {
		if c.CompareToCoord(coord) > 0 {
			out = append(out, c)
		}
	}
	return out
}
