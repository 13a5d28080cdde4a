package logger

import (
	"context"
	"os"

	kitlog "github.com/go-kit/kit/log"
)

type contextKey string

const (
	loggerKey = contextKey("logger")

	// DefaultService is the service key attached when no name is supplied.
	DefaultService = "agritech-dashboard"
)

// NewLogger returns a logfmt logger writing to stdout, tagged with the
// service name and a UTC timestamp.
func NewLogger(service string) kitlog.Logger {
	if service == "" {
		service = DefaultService
	}
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	return kitlog.With(logger, "service", service, "ts", kitlog.DefaultTimestampUTC)
}

// FromContext returns a logger instance from the given context. If the logger
// is not found we return a new unscoped but usable logger.
func FromContext(ctx context.Context) kitlog.Logger {
	if logger, ok := ctx.Value(loggerKey).(kitlog.Logger); ok {
		return logger
	}

	logger := NewLogger(DefaultService)
	return kitlog.With(logger, "module", "logger")
}

// ToContext sets the given logger into a child context which it now returns.
func ToContext(ctx context.Context, logger kitlog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
