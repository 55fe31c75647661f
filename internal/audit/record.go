package audit

import (
	"time"

	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/logging"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// Recorder ties a structured log line to the jobId/event/operation shape
// spec.md §4.10 requires, optionally appending tenant/order context.
type Recorder struct {
	logger *zap.Logger
}

// NewRecorder builds a Recorder writing through logger.
func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Start logs the beginning of a long-lived operation and returns the
// start time callers pass back into Finish for duration accounting.
func (r *Recorder) Start(jobID, event, operation, tenantID string) time.Time {
	fields := logging.JobFields(jobID, event, operation)
	if tenantID != "" {
		fields = logging.WithTenant(fields, tenantID)
	}
	r.logger.Info("operation started", fields...)
	return time.Now()
}

// Finish logs the completion of a long-lived operation at info (success)
// or error (failure), with duration since start.
func (r *Recorder) Finish(jobID, event, operation, tenantID, orderID string, start time.Time, err error) {
	fields := logging.JobFields(jobID, event, operation)
	if tenantID != "" {
		fields = logging.WithTenant(fields, tenantID)
	}
	if orderID != "" {
		fields = logging.WithOrder(fields, orderID)
	}
	fields = append(fields, zap.Duration("duration", time.Since(start)))

	if err != nil {
		r.logger.Error("operation failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("operation completed", fields...)
}

// RecordOrderAction writes a per-order audit trail entry (spec.md §3
// OrderSyncLog), alongside whatever structured log the caller already
// emitted via Start/Finish.
func RecordOrderAction(orderID string, action domain.SyncLogAction, origin domain.SyncOrigin, target string, success bool, errMsg, externalID string, changedFields []string) error {
	return postgres.InsertOrderSyncLog(domain.OrderSyncLog{
		OrderID:        orderID,
		Action:         action,
		Origin:         origin,
		TargetPlatform: target,
		Success:        success,
		ErrorMessage:   errMsg,
		ExternalID:     externalID,
		ChangedFields:  changedFields,
	})
}
