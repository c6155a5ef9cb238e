package client

import (
	"context"

	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/region"
	"github.com/rangekv/rangekv/rpc"
	"github.com/rangekv/rangekv/types"
)

// Table is the entry point for scans and point lookups against one table.
// Its only collaborators are the batch-fetch contract and the region locator.
type Table struct {
	name    string
	fetcher rpc.Fetcher
	locator region.Locator
	retry   RetryConfig
}

// Option configures a Table.
type Option func(*Table)

// WithRetryConfig overrides the retry bounds for scans on this table.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(t *Table) {
		t.retry = cfg
	}
}

// NewTable creates a table client over the given fetcher and locator.
func NewTable(name string, fetcher rpc.Fetcher, locator region.Locator, opts ...Option) *Table {
	t := &Table{
		name:    name,
		fetcher: fetcher,
		locator: locator,
		retry:   DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// GetScanner validates the descriptor and returns a scanner over it. The
// descriptor must not be mutated while the scanner is live.
func (t *Table) GetScanner(ctx context.Context, scan *Scan) (Scanner, error) {
	if err := scan.validate(); err != nil {
		return nil, err
	}
	inner := newClientScanner(ctx, t, scan)
	logger.DebugContext(ctx, "scanner opened",
		"scanner_id", inner.id, "table", t.name, "reversed", scan.reversed, "async", scan.asyncPrefetch)
	if scan.asyncPrefetch {
		return newAsyncPrefetchScanner(inner), nil
	}
	return inner, nil
}

// Get performs a point lookup, sharing scan's row-level shaping exactly. A
// missing row yields an empty (zero-cell) result, not an error.
func (t *Table) Get(ctx context.Context, get *Get) (*types.Result, error) {
	if err := get.validate(); err != nil {
		return nil, err
	}
	scanner, err := t.GetScanner(ctx, get.asScan())
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	// One row at most, but it may arrive as several partial pieces.
	var pieces []*types.Result
	for {
		r, err := scanner.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			break
		}
		pieces = append(pieces, r)
	}
	return types.CombineResults(pieces...), nil
}

// ScanAll runs the scan to completion and aggregates every cell into one
// ordered sequence. Intended for small ranges and tests.
func (t *Table) ScanAll(ctx context.Context, scan *Scan) (*types.Result, error) {
	scanner, err := t.GetScanner(ctx, scan)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	var all []*types.Result
	for {
		r, err := scanner.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			break
		}
		all = append(all, r)
	}
	return types.CombineResults(all...), nil
}
