package events

import (
	"context"
	"os"
)

type contextKey int

const (
	loggerKey contextKey = iota
	deviceIDKey
	recordIDKey
)

// FromContext extracts the logger from ctx, falling back to the default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithDeviceID tags the context logger with the syncing device's ID.
func WithDeviceID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("device_id", id)
	ctx = context.WithValue(ctx, deviceIDKey, id)
	return WithLogger(ctx, logger)
}

// WithRecordID tags the context logger with the record being synced.
func WithRecordID(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("record_id", id)
	ctx = context.WithValue(ctx, recordIDKey, id)
	return WithLogger(ctx, logger)
}

// GetDeviceID retrieves the device ID from the context.
func GetDeviceID(ctx context.Context) string {
	if id, ok := ctx.Value(deviceIDKey).(string); ok {
		return id
	}
	return ""
}

// GetRecordID retrieves the record ID from the context.
func GetRecordID(ctx context.Context) string {
	if id, ok := ctx.Value(recordIDKey).(string); ok {
		return id
	}
	return ""
}

var defaultLogger = New("info", "text", os.Stdout)

// SetDefault sets the default logger returned by FromContext.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
