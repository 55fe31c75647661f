package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNewJobIDHasPrefixAndUUIDSuffix(t *testing.T) {
	id := NewJobID(PrefixSyncIncremental)
	assert.True(t, strings.HasPrefix(id, PrefixSyncIncremental+"-"))
	assert.Len(t, strings.TrimPrefix(id, PrefixSyncIncremental+"-"), 36)
}

func TestNewJobIDUniquePerCall(t *testing.T) {
	a := NewJobID(PrefixWebhook)
	b := NewJobID(PrefixWebhook)
	assert.NotEqual(t, a, b)
}

func TestRecorderStartAndFinishDoNotPanic(t *testing.T) {
	r := NewRecorder(zaptest.NewLogger(t))
	start := r.Start("sync-inc-1", "sync", "incremental_sync", "tenant-1")
	r.Finish("sync-inc-1", "sync", "incremental_sync", "tenant-1", "order-1", start, nil)
	r.Finish("sync-inc-1", "sync", "incremental_sync", "tenant-1", "", start, assertError())
}

func assertError() error {
	return &testErr{}
}

type testErr struct{}

func (e *testErr) Error() string { return "boom" }
