package client

import (
	"sync"

	"github.com/rangekv/rangekv/logger"
	"github.com/rangekv/rangekv/types"
)

// AsyncPrefetchScanner wraps a ClientScanner with a single background
// goroutine that keeps fetching ahead of consumption. The bounded channel is
// the backpressure: the prefetcher suspends (does not spin) while the
// consumer is behind, and at most one fetch is ever in flight per scan, so
// ordering and content are identical to the synchronous scanner.
type AsyncPrefetchScanner struct {
	inner *ClientScanner

	results chan *types.Result
	stop    chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

func newAsyncPrefetchScanner(inner *ClientScanner) *AsyncPrefetchScanner {
	depth := inner.scan.caching
	if depth <= 0 {
		depth = DefaultCaching
	}
	s := &AsyncPrefetchScanner{
		inner:   inner,
		results: make(chan *types.Result, depth),
		stop:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.prefetchLoop()
	return s
}

func (s *AsyncPrefetchScanner) prefetchLoop() {
	defer s.wg.Done()
	defer close(s.results)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		r, err := s.inner.Next()
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
		if r == nil {
			return
		}

		select {
		case s.results <- r:
		case <-s.stop:
			return
		}
	}
}

// Next returns the next result, usually straight from the prefetched cache.
func (s *AsyncPrefetchScanner) Next() (*types.Result, error) {
	r, ok := <-s.results
	if !ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.err
	}
	return r, nil
}

// NextN returns up to n results, stopping early at end of scan.
func (s *AsyncPrefetchScanner) NextN(n int) ([]*types.Result, error) {
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

// Close stops the prefetcher, waits for it to exit, and releases the
// underlying scan. Idempotent.
func (s *AsyncPrefetchScanner) Close() {
	s.closeOnce.Do(func() {
		s.inner.cancel() // unblock an in-flight fetch
		close(s.stop)
		s.wg.Wait()
		s.inner.Close()
		logger.Debug("prefetch scanner closed", "scanner_id", s.inner.id)
	})
}
