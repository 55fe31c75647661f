package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/queue"
)

func TestOrderSyncToFFNRejectsMalformedPayload(t *testing.T) {
	h := NewHandlers(nil, nil, zap.NewNop())
	err := h.OrderSyncToFFN(context.Background(), queue.Job{Payload: []byte("not json")})
	assert.Error(t, err)
}

func TestOrderSyncToCommerceRejectsMalformedPayload(t *testing.T) {
	h := NewHandlers(nil, nil, zap.NewNop())
	err := h.OrderSyncToCommerce(context.Background(), queue.Job{Payload: []byte("not json")})
	assert.Error(t, err)
}

func TestProductSyncToFFNRejectsMalformedPayload(t *testing.T) {
	h := NewHandlers(nil, nil, zap.NewNop())
	err := h.ProductSyncToFFN(context.Background(), queue.Job{Payload: []byte("not json")})
	assert.Error(t, err)
}

func TestReturnSyncToFFNRejectsMalformedPayload(t *testing.T) {
	h := NewHandlers(nil, nil, zap.NewNop())
	err := h.ReturnSyncToFFN(context.Background(), queue.Job{Payload: []byte("not json")})
	assert.Error(t, err)
}

func TestReturnSyncToCommerceRejectsMalformedPayload(t *testing.T) {
	h := NewHandlers(nil, nil, zap.NewNop())
	err := h.ReturnSyncToCommerce(context.Background(), queue.Job{Payload: []byte("not json")})
	assert.Error(t, err)
}
