package scheduler

import (
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// loadCursor reads the opaque pagination cursor stashed in a prior
// CronJobStatus.Details, keyed by (tenantID, jobName). Migrations being
// out of scope (spec.md §7), the cursor rides in the existing JSONB
// column instead of a dedicated table/column.
func loadCursor(tenantID, jobName string) string {
	status, err := postgres.GetCronJobStatus(tenantID, jobName)
	if err != nil {
		return ""
	}
	if status.Details == nil {
		return ""
	}
	cursor, _ := status.Details["cursor"].(string)
	return cursor
}

func recordCronRun(tenantID, jobName string, start time.Time, cursor string, runErr error) {
	details := map[string]any{}
	if cursor != "" {
		details["cursor"] = cursor
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	_ = postgres.UpsertCronJobStatus(domain.CronJobStatus{
		TenantID:  tenantID,
		JobName:   jobName,
		LastRunAt: time.Now(),
		Success:   runErr == nil,
		Duration:  time.Since(start),
		Details:   details,
		Error:     errMsg,
	})
}
