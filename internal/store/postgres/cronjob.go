package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// UpsertCronJobStatus records the last-run outcome for a (tenant, job)
// pair, read by operators to tell whether a scheduler loop is stuck
// (spec.md §4.9).
func UpsertCronJobStatus(s domain.CronJobStatus) error {
	details, err := json.Marshal(s.Details)
	if err != nil {
		return fmt.Errorf("marshal cron job details: %w", err)
	}

	_, err = DB.Exec(`
		INSERT INTO cron_job_status (tenant_id, job_name, last_run_at, success, duration_ms, details, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, job_name) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			success = EXCLUDED.success,
			duration_ms = EXCLUDED.duration_ms,
			details = EXCLUDED.details,
			error = EXCLUDED.error
	`, s.TenantID, s.JobName, s.LastRunAt, s.Success, s.Duration.Milliseconds(), details, s.Error)
	if err != nil {
		return fmt.Errorf("upsert cron job status: %w", err)
	}
	return nil
}

// GetCronJobStatus fetches the last recorded run for a (tenant, job) pair.
func GetCronJobStatus(tenantID, jobName string) (domain.CronJobStatus, error) {
	var s domain.CronJobStatus
	var durationMS int64
	var details []byte
	err := DB.QueryRow(`
		SELECT tenant_id, job_name, last_run_at, success, duration_ms, details, error
		FROM cron_job_status WHERE tenant_id = $1 AND job_name = $2
	`, tenantID, jobName).Scan(&s.TenantID, &s.JobName, &s.LastRunAt, &s.Success, &durationMS, &details, &s.Error)
	if err != nil {
		return domain.CronJobStatus{}, fmt.Errorf("get cron job status: %w", err)
	}
	s.Duration = time.Duration(durationMS) * time.Millisecond
	_ = json.Unmarshal(details, &s.Details)
	return s, nil
}
