// Package errors provides the error taxonomy for the rangekv client.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the scan and admin paths
const (
	// ErrCodeNotServingRegion means the target node no longer owns the
	// region; recoverable after re-locating.
	ErrCodeNotServingRegion = "not_serving_region"
	// ErrCodeScanHandleExpired means the server-side scanner lease timed
	// out; recoverable after reopening.
	ErrCodeScanHandleExpired = "scan_handle_expired"
	// ErrCodeRetriesExhausted means the retry budget ran out; fatal.
	ErrCodeRetriesExhausted = "retries_exhausted"
	// ErrCodeIOFailure is a transport-level failure; retried like relocation.
	ErrCodeIOFailure = "io_failure"
	// ErrCodeMalformedScan means the descriptor failed validation; raised at
	// construction, never at fetch time.
	ErrCodeMalformedScan = "malformed_scan"
	// ErrCodeScannerClosed means the scanner was used after Close.
	ErrCodeScannerClosed = "scanner_closed"
	// ErrCodeRemoteCall is a uniform wrapper for admin RPC transport failures.
	ErrCodeRemoteCall = "remote_call"
)

// ScanError is the error type surfaced by the rangekv client
type ScanError struct {
	Code    string
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ScanError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements the unwrap interface for error chaining
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is matches two ScanErrors by code
func (e *ScanError) Is(target error) bool {
	if t, ok := target.(*ScanError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new ScanError
func New(code, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new ScanError with a formatted message
func Errorf(code, format string, args ...interface{}) *ScanError {
	return &ScanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an underlying error into a ScanError
func Wrap(err error, code, op, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// WithOp returns a copy of the error annotated with an operation name
func WithOp(err *ScanError, op string) *ScanError {
	return &ScanError{
		Code:    err.Code,
		Op:      op,
		Message: err.Message,
		Err:     err.Err,
	}
}

func codeOf(err error) string {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotServingRegion reports whether err carries the not-serving-region code
func IsNotServingRegion(err error) bool {
	return codeOf(err) == ErrCodeNotServingRegion
}

// IsScanHandleExpired reports whether err carries the handle-expired code
func IsScanHandleExpired(err error) bool {
	return codeOf(err) == ErrCodeScanHandleExpired
}

// IsRetriesExhausted reports whether err is the fatal retry-budget error
func IsRetriesExhausted(err error) bool {
	return codeOf(err) == ErrCodeRetriesExhausted
}

// IsMalformedScan reports whether err is a descriptor validation error
func IsMalformedScan(err error) bool {
	return codeOf(err) == ErrCodeMalformedScan
}

// IsRetryable reports whether the scan driver should re-locate and retry
// after seeing err. Everything else is fatal for the scan.
func IsRetryable(err error) bool {
	switch codeOf(err) {
	case ErrCodeNotServingRegion, ErrCodeScanHandleExpired, ErrCodeIOFailure:
		return true
	}
	return false
}
