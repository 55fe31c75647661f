package webhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/queue"
)

func TestParseTopicStorefrontSlashSeparator(t *testing.T) {
	topic, err := ParseTopic(domain.OriginStorefront, "orders/create")
	require.NoError(t, err)
	assert.Equal(t, Topic{Resource: "orders", Action: "create"}, topic)
}

func TestParseTopicWebshopDashSeparator(t *testing.T) {
	topic, err := ParseTopic(domain.OriginWebshop, "orders-update")
	require.NoError(t, err)
	assert.Equal(t, Topic{Resource: "orders", Action: "update"}, topic)
}

func TestParseTopicMalformedReturnsError(t *testing.T) {
	_, err := ParseTopic(domain.OriginStorefront, "ordersonly")
	assert.Error(t, err)
}

type fakeEnqueuer struct {
	calls []struct {
		queueName string
		payload   any
		opts      queue.EnqueueOptions
	}
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, queueName string, payload any, opts queue.EnqueueOptions) (string, error) {
	f.calls = append(f.calls, struct {
		queueName string
		payload   any
		opts      queue.EnqueueOptions
	}{queueName, payload, opts})
	return "job-1", nil
}

func TestDispatchOrderCreateEnqueuesFFNSync(t *testing.T) {
	fe := &fakeEnqueuer{}
	proc := NewProcessor(fe, zap.NewNop())

	err := proc.Dispatch(context.Background(), "tenant-1", domain.OriginStorefront,
		Topic{Resource: "orders", Action: "create"},
		map[string]any{"id": "ext-123", "status": "pending"})

	require.NoError(t, err)
	require.Len(t, fe.calls, 1)
	assert.Equal(t, queue.QueueOrderSyncToFFN, fe.calls[0].queueName)
	assert.Equal(t, "webhook-order-tenant-1-ext-123", fe.calls[0].opts.SingletonKey)
}

func TestDispatchOrderMissingIDIsValidationError(t *testing.T) {
	fe := &fakeEnqueuer{}
	proc := NewProcessor(fe, zap.NewNop())

	err := proc.Dispatch(context.Background(), "tenant-1", domain.OriginStorefront,
		Topic{Resource: "orders", Action: "create"}, map[string]any{})

	require.Error(t, err)
	_, ok := err.(*errs.ValidationError)
	assert.True(t, ok)
	assert.Empty(t, fe.calls)
}

func TestDispatchProductUpdateEnqueuesFFNSync(t *testing.T) {
	fe := &fakeEnqueuer{}
	proc := NewProcessor(fe, zap.NewNop())

	err := proc.Dispatch(context.Background(), "tenant-1", domain.OriginWebshop,
		Topic{Resource: "products", Action: "update"},
		map[string]any{"sku": "SKU-1", "name": "Widget"})

	require.NoError(t, err)
	require.Len(t, fe.calls, 1)
	assert.Equal(t, queue.QueueProductSyncToFFN, fe.calls[0].queueName)
}

func TestDispatchOrderDeleteEnqueuesCancel(t *testing.T) {
	fe := &fakeEnqueuer{}
	proc := NewProcessor(fe, zap.NewNop())

	err := proc.Dispatch(context.Background(), "tenant-1", domain.OriginStorefront,
		Topic{Resource: "orders", Action: "delete"},
		map[string]any{"id": "ext-123"})

	require.NoError(t, err)
	require.Len(t, fe.calls, 1)
	assert.Equal(t, queue.QueueOrderSyncToFFN, fe.calls[0].queueName)
	payload, ok := fe.calls[0].payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "cancel", payload["action"])
}

func TestDispatchProductDeleteEnqueuesUnlink(t *testing.T) {
	fe := &fakeEnqueuer{}
	proc := NewProcessor(fe, zap.NewNop())

	err := proc.Dispatch(context.Background(), "tenant-1", domain.OriginWebshop,
		Topic{Resource: "products", Action: "delete"},
		map[string]any{"sku": "SKU-1"})

	require.NoError(t, err)
	require.Len(t, fe.calls, 1)
	assert.Equal(t, queue.QueueProductSyncToFFN, fe.calls[0].queueName)
	payload, ok := fe.calls[0].payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "delete", payload["action"])
}

func TestDispatchUnknownResourceIsNoOp(t *testing.T) {
	fe := &fakeEnqueuer{}
	proc := NewProcessor(fe, zap.NewNop())

	err := proc.Dispatch(context.Background(), "tenant-1", domain.OriginStorefront,
		Topic{Resource: "inventory_locations", Action: "update"}, map[string]any{})

	require.NoError(t, err)
	assert.Empty(t, fe.calls)
}
