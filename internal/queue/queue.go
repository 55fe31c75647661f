// Package queue implements the durable job queue (spec.md §4.5): the only
// durable communication channel between components. There is no in-memory
// fan-out here that could lose work across a crash — every enqueue is a
// committed Postgres row, and every lease is a `SELECT ... FOR UPDATE SKIP
// LOCKED` claim on that same row, following the teacher's
// function-per-operation style against a single connection pool.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusLeased  Status = "LEASED"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// Queue names are fixed per spec.md §4.5; handlers register against these.
const (
	QueueOrderSyncToFFN      = "order-sync-to-ffn"
	QueueOrderSyncToCommerce = "order-sync-to-commerce"
	QueueProductSyncToFFN    = "product-sync-to-ffn"
	QueueReturnSyncToFFN     = "return-sync-to-ffn"
	QueueReturnSyncToCommerce = "return-sync-to-commerce"
)

// Job is a durable unit of work.
type Job struct {
	ID             string
	QueueName      string
	Payload        json.RawMessage
	Priority       int // -5..5, higher runs first
	Status         Status
	SingletonKey   string
	Attempts       int
	RetryLimit     int
	RetryDelay     time.Duration
	RunAt          time.Time
	LockedBy       string
	LeaseExpiresAt *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EnqueueOptions configures an Enqueue call; zero values pick the spec's
// defaults (priority 0, retryLimit 5, retryDelay 1s). ExpireInSeconds is
// not stored with the job: how long a lease lasts is set by the duration
// the worker passes to Lease.
type EnqueueOptions struct {
	Priority        int
	SingletonKey    string
	RetryLimit      int
	RetryDelay      time.Duration
	RunAt           time.Time
	ExpireInSeconds int
}

// Enqueuer is the narrow interface the lifecycle engine and webhook
// processor depend on, so tests can substitute an in-memory fake without
// touching Postgres.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload any, opts EnqueueOptions) (string, error)
}

// Client is the Postgres-backed Enqueuer/worker-side queue client.
type Client struct{}

// New constructs a Client. It carries no state of its own; all state lives
// in the jobs table via the global postgres.DB pool, matching the
// teacher's pool-is-global convention.
func New() *Client { return &Client{} }

// Enqueue inserts a new job. When opts.SingletonKey is set and a
// non-terminal job already exists for (queueName, singletonKey), this is a
// no-op: it returns the existing job's id instead of creating a duplicate
// (spec.md §4.5 "singletonKey dedup").
func (c *Client) Enqueue(ctx context.Context, queueName string, payload any, opts EnqueueOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	priority := opts.Priority
	retryLimit := opts.RetryLimit
	if retryLimit == 0 {
		retryLimit = 5
	}
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}
	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}

	id := uuid.NewString()
	var singletonKey sql.NullString
	if opts.SingletonKey != "" {
		singletonKey = sql.NullString{String: opts.SingletonKey, Valid: true}

		var existingID string
		err := postgres.DB.QueryRowContext(ctx, `
			SELECT id FROM jobs
			WHERE queue_name = $1 AND singleton_key = $2 AND status IN ('PENDING', 'LEASED')
		`, queueName, opts.SingletonKey).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", fmt.Errorf("check singleton job: %w", err)
		}
	}

	_, err = postgres.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, queue_name, payload, priority, status, singleton_key, retry_limit, retry_delay_ms, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, queueName, body, priority, StatusPending, singletonKey, retryLimit, retryDelay.Milliseconds(), runAt)
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// Lease claims up to n pending, due jobs from queueName for workerID,
// using SELECT ... FOR UPDATE SKIP LOCKED so concurrent worker processes
// never double-claim a row (spec.md §4.5/§4.6).
func (c *Client) Lease(ctx context.Context, queueName, workerID string, n int, leaseFor time.Duration) ([]Job, error) {
	tx, err := postgres.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lease tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, queue_name, payload, priority, status, COALESCE(singleton_key, ''),
		       attempts, retry_limit, retry_delay_ms, run_at, last_error, created_at, updated_at
		FROM jobs
		WHERE queue_name = $1 AND status = 'PENDING' AND run_at <= now()
		ORDER BY priority DESC, run_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, queueName, n)
	if err != nil {
		return nil, fmt.Errorf("select leasable jobs: %w", err)
	}

	var jobs []Job
	for rows.Next() {
		var j Job
		var retryDelayMS int64
		if err := rows.Scan(&j.ID, &j.QueueName, &j.Payload, &j.Priority, &j.Status, &j.SingletonKey,
			&j.Attempts, &j.RetryLimit, &retryDelayMS, &j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan leasable job: %w", err)
		}
		j.RetryDelay = time.Duration(retryDelayMS) * time.Millisecond
		jobs = append(jobs, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leasable jobs: %w", err)
	}

	leaseExpiry := time.Now().Add(leaseFor)
	for _, j := range jobs {
		_, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = 'LEASED', locked_by = $1, locked_at = now(),
			                lease_expires_at = $2, attempts = attempts + 1, updated_at = now()
			WHERE id = $3
		`, workerID, leaseExpiry, j.ID)
		if err != nil {
			return nil, fmt.Errorf("lease job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease tx: %w", err)
	}

	for i := range jobs {
		jobs[i].Status = StatusLeased
		jobs[i].LockedBy = workerID
		jobs[i].Attempts++
		exp := leaseExpiry
		jobs[i].LeaseExpiresAt = &exp
	}
	return jobs, nil
}

// Complete marks a job done.
func (c *Client) Complete(ctx context.Context, jobID string) error {
	_, err := postgres.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'DONE', updated_at = now() WHERE id = $1
	`, jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. If retries remain it reschedules the job
// with exponential backoff (retryDelay * 2^attempts, capped at 1 hour);
// otherwise it marks the job permanently FAILED.
func (c *Client) Fail(ctx context.Context, job Job, cause error) error {
	if job.Attempts >= job.RetryLimit {
		_, err := postgres.DB.ExecContext(ctx, `
			UPDATE jobs SET status = 'FAILED', last_error = $1, updated_at = now() WHERE id = $2
		`, cause.Error(), job.ID)
		if err != nil {
			return fmt.Errorf("mark job failed: %w", err)
		}
		return nil
	}

	backoff := job.RetryDelay << uint(job.Attempts)
	if backoff > time.Hour || backoff <= 0 {
		backoff = time.Hour
	}
	nextRun := time.Now().Add(backoff)

	_, err := postgres.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'PENDING', run_at = $1, last_error = $2,
		                locked_by = NULL, lease_expires_at = NULL, updated_at = now()
		WHERE id = $3
	`, nextRun, cause.Error(), job.ID)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// ReclaimExpiredLeases resets jobs whose lease has expired without a
// Complete/Fail call (a crashed worker) back to PENDING so another worker
// can pick them up.
func (c *Client) ReclaimExpiredLeases(ctx context.Context) (int64, error) {
	res, err := postgres.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'PENDING', locked_by = NULL, lease_expires_at = NULL, updated_at = now()
		WHERE status = 'LEASED' AND lease_expires_at < now()
	`)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	return res.RowsAffected()
}
