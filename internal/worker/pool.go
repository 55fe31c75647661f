// Package worker implements the bounded worker pool (spec.md §4.6): one
// pool per queue name, concurrency capped by a buffered-channel semaphore
// rather than a generic executor library, in the teacher's preference for
// small hand-rolled concurrency primitives over a pooling dependency.
package worker

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/logging"
	"github.com/shipbridge/sync-engine/internal/queue"
)

// Handler processes one job's payload. A returned error that satisfies
// errs.Retryable with IsRetryable()==true is rescheduled with backoff until
// its retry limit is reached; anything else is marked permanently failed
// at once.
type Handler func(ctx context.Context, job queue.Job) error

// DefaultLeaseDuration is how long a leased job is considered claimed
// before ReclaimExpiredLeases returns it to PENDING.
const DefaultLeaseDuration = 5 * time.Minute

// Pool runs one bounded worker loop per registered queue name.
type Pool struct {
	client   *queue.Client
	logger   *zap.Logger
	handlers map[string]Handler
	conc     map[string]int

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an empty Pool; each queue's handler and concurrency are
// supplied later through Register.
func New(client *queue.Client, logger *zap.Logger) *Pool {
	return &Pool{
		client:   client,
		logger:   logger,
		handlers: map[string]Handler{},
		conc:     map[string]int{},
		cancel:   map[string]context.CancelFunc{},
	}
}

// Register binds a handler to a queue name with a concurrency limit.
func (p *Pool) Register(queueName string, concurrency int, h Handler) {
	p.handlers[queueName] = h
	if concurrency <= 0 {
		concurrency = 1
	}
	p.conc[queueName] = concurrency
}

// Start launches one goroutine per registered queue, each running its own
// bounded-concurrency lease loop until ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for queueName, handler := range p.handlers {
		queueName, handler := queueName, handler
		loopCtx, cancel := context.WithCancel(ctx)

		p.mu.Lock()
		p.cancel[queueName] = cancel
		p.mu.Unlock()

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runQueueLoop(loopCtx, queueName, handler)
		}()
	}
}

// Stop cancels every queue loop and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	for _, cancel := range p.cancel {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) runQueueLoop(ctx context.Context, queueName string, handler Handler) {
	sem := make(chan struct{}, p.conc[queueName])
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			free := cap(sem) - len(sem)
			if free <= 0 {
				continue
			}
			jobs, err := p.client.Lease(ctx, queueName, workerID(), free, DefaultLeaseDuration)
			if err != nil {
				p.logger.Warn("lease failed", zap.String("queue", queueName), zap.Error(err))
				continue
			}
			for _, job := range jobs {
				job := job
				sem <- struct{}{}
				inFlight.Add(1)
				go func() {
					defer inFlight.Done()
					defer func() { <-sem }()
					p.runOne(ctx, job, handler)
				}()
			}
		}
	}
}

func (p *Pool) runOne(ctx context.Context, job queue.Job, handler Handler) {
	fields := logging.JobFields(job.ID, "job.handle", job.QueueName)
	start := time.Now()

	err := handler(ctx, job)
	elapsed := time.Since(start)

	if err == nil {
		if cerr := p.client.Complete(ctx, job.ID); cerr != nil {
			p.logger.Error("complete job failed", append(fields, zap.Error(cerr))...)
		}
		p.logger.Info("job completed", append(fields, zap.Duration("elapsed", elapsed))...)
		return
	}

	if !errs.IsRetryable(err) {
		job.Attempts = job.RetryLimit // force terminal failure for non-retryable errors
	}
	if ferr := p.client.Fail(ctx, job, err); ferr != nil {
		p.logger.Error("fail job bookkeeping failed", append(fields, zap.Error(ferr))...)
	}
	p.logger.Warn("job failed", append(fields, zap.Error(err), zap.Bool("retryable", errs.IsRetryable(err)))...)
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host
}
