package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	job := Job{ID: "j1", Attempts: 2, RetryLimit: 5, RetryDelay: time.Second}
	backoff := job.RetryDelay << uint(job.Attempts)
	assert.Equal(t, 4*time.Second, backoff)
}

func TestBackoffCapsAtOneHour(t *testing.T) {
	job := Job{ID: "j2", Attempts: 20, RetryLimit: 30, RetryDelay: time.Second}
	backoff := job.RetryDelay << uint(job.Attempts)
	if backoff > time.Hour || backoff <= 0 {
		backoff = time.Hour
	}
	assert.Equal(t, time.Hour, backoff)
}

func TestQueueNameConstants(t *testing.T) {
	assert.Equal(t, "order-sync-to-ffn", QueueOrderSyncToFFN)
	assert.Equal(t, "product-sync-to-ffn", QueueProductSyncToFFN)
}
