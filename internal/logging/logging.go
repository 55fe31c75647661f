// Package logging provides the structured logger used across the sync
// engine, replacing ambient console logging with records that always carry
// a correlation job id (spec.md §4.10 / §9 "ambient console.log" design
// note).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide zap.Logger. Production builds emit JSON;
// set LOG_FORMAT=console for human-readable local development output.
func New(serviceName string) (*zap.Logger, error) {
	var cfg zap.Config
	if os.Getenv("LOG_FORMAT") == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}

// JobFields returns the base fields every correlated operation's logs
// should carry: a job id and the event/operation name.
func JobFields(jobID, event, operation string) []zap.Field {
	return []zap.Field{
		zap.String("jobId", jobID),
		zap.String("event", event),
		zap.String("operation", operation),
	}
}

// WithTenant appends a tenantId field, used liberally across the scheduler
// and lifecycle engine since almost every log line is tenant-scoped.
func WithTenant(fields []zap.Field, tenantID string) []zap.Field {
	return append(fields, zap.String("tenantId", tenantID))
}

// WithOrder appends an orderId field.
func WithOrder(fields []zap.Field, orderID string) []zap.Field {
	return append(fields, zap.String("orderId", orderID))
}
