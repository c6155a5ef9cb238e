package client

import (
	"bytes"
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/rangekv/rangekv/client/errors"
	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/metrics"
	"github.com/rangekv/rangekv/region"
	"github.com/rangekv/rangekv/rpc"
	"github.com/rangekv/rangekv/types"
)

// Scanner is the pull iterator over scan results. Next returns nil at end of
// scan; after a terminal error the scanner is unusable but results already
// delivered remain valid.
type Scanner interface {
	Next() (*types.Result, error)
	NextN(n int) ([]*types.Result, error)
	Close()
}

// scanState tracks the driver through its lifecycle:
// idle → locating → streaming → {retrying, exhaustedRegion, done} → closed.
type scanState int

const (
	stateIdle scanState = iota
	stateLocating
	stateStreaming
	stateRetrying
	stateExhaustedRegion
	stateDone
	stateClosed
)

// cursor is the next row key the scan resumes from, in scan direction.
type cursor struct {
	key       []byte
	inclusive bool
}

// resumeMarker resumes a wide row that was cut mid-row by the byte cap, so
// the row is not re-delivered from scratch.
type resumeMarker struct {
	row   []byte
	after types.CellCoord
}

// ClientScanner drives one scan: it locates the region covering the cursor,
// runs the batch-fetch protocol against it, accepts batches into the result
// cache, and recovers from relocation with bounded backoff. The cursor is
// owned exclusively by the driver and advances only after a batch has been
// fully accepted into the cache.
type ClientScanner struct {
	id    string
	table *Table
	scan  *Scan

	ctx    context.Context
	cancel context.CancelFunc

	cache  *resultCache
	state  scanState
	cursor cursor
	resume *resumeMarker

	currentRegion region.Descriptor
	handle        rpc.Handle
	hasHandle     bool

	// smallFallback switches the current region to the regular protocol
	// after a small scan response did not fit the byte cap.
	smallFallback bool
	pendingSmall  *rpc.Batch

	err error
}

func newClientScanner(ctx context.Context, table *Table, scan *Scan) *ClientScanner {
	sctx, cancel := context.WithCancel(ctx)
	s := &ClientScanner{
		id:     uuid.NewString(),
		table:  table,
		scan:   scan,
		ctx:    sctx,
		cancel: cancel,
		cache:  newResultCache(),
		state:  stateIdle,
	}
	inclusive := scan.startInclusive
	if scan.reversed && len(scan.startRow) == 0 {
		// Empty start in a reversed scan means past the table's last row;
		// an exclusive cursor makes locateReverse pick the last region.
		inclusive = false
	}
	s.cursor = cursor{key: scan.startRow, inclusive: inclusive}
	return s
}

// Next returns the next result in scan order, or nil at end of scan.
func (s *ClientScanner) Next() (*types.Result, error) {
	if r := s.cache.pop(); r != nil {
		metrics.RowsReturned.Inc()
		return r, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	switch s.state {
	case stateClosed:
		return nil, errors.New(errors.ErrCodeScannerClosed, "scanner already closed")
	case stateDone:
		return nil, nil
	}
	if err := s.loadCache(); err != nil {
		s.err = err
		return nil, err
	}
	r := s.cache.pop()
	if r != nil {
		metrics.RowsReturned.Inc()
	}
	return r, nil
}

// NextN returns up to n results, stopping early at end of scan.
func (s *ClientScanner) NextN(n int) ([]*types.Result, error) {
	results := make([]*types.Result, 0, n)
	for i := 0; i < n; i++ {
		r, err := s.Next()
		if err != nil {
			return results, err
		}
		if r == nil {
			break
		}
		results = append(results, r)
	}
	return results, nil
}

// Close releases the scan: the server-side handle is closed best-effort and
// any in-flight fetch is cancelled. Idempotent.
func (s *ClientScanner) Close() {
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed
	s.cancel()
	if s.hasHandle {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		s.table.fetcher.Close(ctx, s.handle)
		cancel()
		s.hasHandle = false
	}
	logger.Debug("scanner closed", "scanner_id", s.id, "table", s.table.name)
}

// loadCache runs the state machine until the cache holds at least one result
// or the scan reaches a terminal state.
func (s *ClientScanner) loadCache() error {
	for s.cache.size() == 0 && s.state != stateDone && s.state != stateClosed {
		switch s.state {
		case stateIdle, stateLocating, stateRetrying, stateExhaustedRegion:
			if err := s.openRegion(); err != nil {
				return err
			}
		case stateStreaming:
			if err := s.fetchBatch(); err != nil {
				return err
			}
		}
	}
	return nil
}

// openRegion locates the region covering the cursor and establishes the next
// fetch source: a server-side handle, or a one-shot small scan response. All
// lookup and open failures inside one episode share a bounded backoff.
func (s *ClientScanner) openRegion() error {
	s.state = stateLocating
	small := s.scan.small && !s.smallFallback

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			s.state = stateRetrying
			metrics.RetriesTotal.Inc()
		}

		loc, err := s.table.locator.Locate(s.ctx, s.table.name, s.cursor.key, s.locateReverse())
		if err != nil {
			return s.classifyRetry(err, region.Descriptor{})
		}

		if small {
			batch, err := s.table.fetcher.SmallScan(s.ctx, s.buildRequest(loc))
			metrics.RPCsTotal.WithLabelValues("small_scan").Inc()
			if err != nil {
				return s.classifyRetry(err, loc)
			}
			s.currentRegion = loc
			s.pendingSmall = &batch
			return nil
		}

		h, err := s.table.fetcher.Open(s.ctx, s.buildRequest(loc))
		metrics.RPCsTotal.WithLabelValues("open").Inc()
		if err != nil {
			return s.classifyRetry(err, loc)
		}
		s.currentRegion = loc
		s.handle = h
		s.hasHandle = true
		return nil
	}

	if err := backoff.Retry(op, s.table.retry.newBackOff(s.ctx)); err != nil {
		return s.retryFailed(err)
	}

	if small {
		batch := *s.pendingSmall
		s.pendingSmall = nil
		if batch.MoreInRegion {
			// The range did not fit one response; finish this region with
			// the regular protocol from the advanced cursor.
			s.smallFallback = true
		}
		s.acceptBatch(batch)
		if batch.MoreInRegion {
			s.state = stateLocating
		}
		return nil
	}

	s.state = stateStreaming
	return nil
}

// fetchBatch issues one fetch round trip and accepts its rows. A recoverable
// failure invalidates the location and re-enters the locate/open path; rows
// already surfaced to the caller are never replayed because the cursor only
// covers what was fully accepted.
func (s *ClientScanner) fetchBatch() error {
	acceptedSeq := s.cache.seqWatermark()

	batch, err := s.table.fetcher.FetchNext(s.ctx, s.handle)
	metrics.RPCsTotal.WithLabelValues("fetch_next").Inc()
	if err != nil {
		if errors.IsRetryable(err) {
			logger.WarnContext(s.ctx, "fetch failed, relocating",
				"scanner_id", s.id, "region", s.currentRegion.String(), "error", err.Error())
			metrics.RetriesTotal.Inc()
			if dropped := s.cache.discardUndelivered(acceptedSeq); dropped > 0 {
				logger.Warn("discarded unsurfaced results from aborted fetch", "count", dropped)
			}
			s.table.fetcher.Close(s.ctx, s.handle)
			s.hasHandle = false
			s.table.locator.Invalidate(s.currentRegion)
			s.state = stateRetrying
			return s.openRegion()
		}
		return err
	}

	s.acceptBatch(batch)
	if batch.MoreInRegion {
		s.state = stateStreaming
	}
	return nil
}

// acceptBatch pushes a batch into the cache and advances the cursor past it.
// On region exhaustion it releases the handle and either moves the cursor to
// the next region boundary or finishes the scan.
func (s *ClientScanner) acceptBatch(batch rpc.Batch) {
	results := batch.Results
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Partial && batch.MoreInRegion {
			lc := last.Cells[len(last.Cells)-1]
			s.resume = &resumeMarker{
				row: last.Row(),
				after: types.CellCoord{
					Family:    lc.Family,
					Qualifier: lc.Qualifier,
					Timestamp: lc.Timestamp,
				},
			}
			s.cursor = cursor{key: last.Row(), inclusive: true}
		} else {
			s.resume = nil
			s.advanceCursorPast(last.Row())
		}
		s.cache.push(s.splitForBatch(results))
	}

	if !batch.MoreInRegion {
		if s.hasHandle {
			s.table.fetcher.Close(s.ctx, s.handle)
			metrics.RPCsTotal.WithLabelValues("close").Inc()
			s.hasHandle = false
		}
		s.resume = nil
		s.smallFallback = false
		s.state = stateExhaustedRegion
		s.nextRegionOrDone()
	}
}

// advanceCursorPast moves the cursor just past row in scan direction.
func (s *ClientScanner) advanceCursorPast(row []byte) {
	if s.scan.reversed {
		s.cursor = cursor{key: row, inclusive: false}
		return
	}
	next := make([]byte, len(row)+1)
	copy(next, row)
	s.cursor = cursor{key: next, inclusive: true}
}

// nextRegionOrDone decides, after exhausting the current region, whether the
// stop boundary has been passed or the cursor moves to the next region.
func (s *ClientScanner) nextRegionOrDone() {
	r := s.currentRegion
	if s.scan.reversed {
		if r.IsFirst() {
			s.state = stateDone
			return
		}
		if len(s.scan.stopRow) > 0 && bytes.Compare(r.StartKey, s.scan.stopRow) <= 0 {
			s.state = stateDone
			return
		}
		s.cursor = cursor{key: r.StartKey, inclusive: false}
	} else {
		if r.IsLast() {
			s.state = stateDone
			return
		}
		if len(s.scan.stopRow) > 0 {
			c := bytes.Compare(r.EndKey, s.scan.stopRow)
			if c > 0 || (c == 0 && !s.scan.stopInclusive) {
				s.state = stateDone
				return
			}
		}
		s.cursor = cursor{key: r.EndKey, inclusive: true}
	}
	s.state = stateLocating
}

// locateReverse reports whether the cursor names an exclusive upper bound,
// which is how reversed scans cross region boundaries.
func (s *ClientScanner) locateReverse() bool {
	return s.scan.reversed && !s.cursor.inclusive
}

func (s *ClientScanner) buildRequest(loc region.Descriptor) *rpc.ScanRequest {
	req := &rpc.ScanRequest{
		Table:          s.table.name,
		Region:         loc,
		StartKey:       s.cursor.key,
		StartInclusive: s.cursor.inclusive,
		StopKey:        s.scan.stopRow,
		StopInclusive:  s.scan.stopInclusive,
		Reversed:       s.scan.reversed,
		Shape:          s.scan.shapeOptions(),
		Caching:        s.scan.caching,
		MaxResultSize:  s.scan.maxResultSize,
	}
	if s.resume != nil {
		req.StartKey = s.resume.row
		req.StartInclusive = true
		req.ResumeRow = s.resume.row
		req.ResumeAfter = s.resume.after
	}
	return req
}

// splitForBatch applies the scan's batch setting, splitting wide rows into
// partial results of at most batch cells each.
func (s *ClientScanner) splitForBatch(results []*types.Result) []*types.Result {
	if s.scan.batch <= 0 {
		return results
	}
	out := make([]*types.Result, 0, len(results))
	for _, r := range results {
		if r.Size() <= s.scan.batch {
			out = append(out, r)
			continue
		}
		cells := r.Cells
		for len(cells) > 0 {
			n := s.scan.batch
			if n > len(cells) {
				n = len(cells)
			}
			chunk := cells[:n]
			cells = cells[n:]
			out = append(out, types.NewResult(chunk, len(cells) > 0 || r.Partial))
		}
	}
	return out
}

// classifyRetry decides whether an RPC failure re-enters the locate loop.
// Stale locations are invalidated before the next lookup so retries cannot
// spin against the same stale answer.
func (s *ClientScanner) classifyRetry(err error, loc region.Descriptor) error {
	if errors.IsRetryable(err) {
		if loc.ID != uuid.Nil {
			s.table.locator.Invalidate(loc)
		}
		return err
	}
	return backoff.Permanent(err)
}

// retryFailed shapes the terminal error after a recovery episode gives up.
func (s *ClientScanner) retryFailed(err error) error {
	if errors.IsRetryable(err) {
		return errors.Wrap(err, errors.ErrCodeRetriesExhausted, "scanner.openRegion",
			"retry budget exhausted while recovering scan")
	}
	return err
}
