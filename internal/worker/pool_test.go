package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/queue"
)

func TestRegisterDefaultsConcurrencyToOne(t *testing.T) {
	p := New(queue.New(), zap.NewNop())
	p.Register("some-queue", 0, func(ctx context.Context, job queue.Job) error { return nil })
	assert.Equal(t, 1, p.conc["some-queue"])
}

func TestWorkerIDNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, workerID())
}
