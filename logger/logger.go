// Package logger provides structured logging for the rangekv client and store.
package logger

import (
	"context"
	"log/slog"
)

// Logger is the global logger instance
var Logger *slog.Logger

// ContextKey is used for context values
type ContextKey string

const (
	// TableKey is the context key for the table being scanned
	TableKey ContextKey = "table"
	// RegionIDKey is the context key for the region a request targets
	RegionIDKey ContextKey = "region_id"
	// ScannerIDKey is the context key for the client scanner id
	ScannerIDKey ContextKey = "scanner_id"
)

func init() {
	Logger = NewLogger(LoadConfig())
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// DebugContext logs a debug message with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger.Debug(msg, appendContextArgs(ctx, args...)...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// InfoContext logs an info message with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger.Info(msg, appendContextArgs(ctx, args...)...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// WarnContext logs a warning message with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger.Warn(msg, appendContextArgs(ctx, args...)...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// ErrorContext logs an error message with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger.Error(msg, appendContextArgs(ctx, args...)...)
}

// With returns a new Logger that includes the given attributes in each output operation
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

// ExtractContextValues returns the rangekv context values as logging args
func ExtractContextValues(ctx context.Context) []any {
	return appendContextArgs(ctx)
}

// appendContextArgs extracts context values and appends them to the args
func appendContextArgs(ctx context.Context, args ...any) []any {
	if ctx == nil {
		return args
	}

	if table, ok := ctx.Value(TableKey).(string); ok {
		args = append(args, "table", table)
	}

	if regionID, ok := ctx.Value(RegionIDKey).(string); ok {
		args = append(args, "region_id", regionID)
	}

	if scannerID, ok := ctx.Value(ScannerIDKey).(string); ok {
		args = append(args, "scanner_id", scannerID)
	}

	return args
}
