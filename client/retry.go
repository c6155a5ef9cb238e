package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries bounds relocation/reopen attempts per recovery
	// episode before the scan fails with a retries-exhausted error.
	DefaultMaxRetries = 8
	// DefaultInitialBackoff is the first retry delay.
	DefaultInitialBackoff = 10 * time.Millisecond
	// DefaultMaxBackoff caps the exponential retry delay.
	DefaultMaxBackoff = 2 * time.Second
)

// RetryConfig bounds the exponential backoff used when a scan recovers from
// relocation, lease expiry, or transport failure. Retries are local to one
// scan and never block other scans.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the retry bounds used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// newBackOff builds the bounded, context-aware backoff for one recovery
// episode.
func (c RetryConfig) newBackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialBackoff
	bo.MaxInterval = c.MaxBackoff
	bo.MaxElapsedTime = 0 // bounded by retry count, not wall time
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.MaxRetries)), ctx)
}
