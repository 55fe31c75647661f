package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shipbridge/sync-engine/internal/domain"
)

func TestPaymentGatePassesForSafeStatus(t *testing.T) {
	o := domain.Order{ID: "o1", PaymentStatus: domain.PaymentStatus("paid")}
	assert.NoError(t, evaluatePaymentGate(o, false))
}

func TestPaymentGateBlocksCancelledOrder(t *testing.T) {
	o := domain.Order{ID: "o1", IsCancelled: true, PaymentStatus: domain.PaymentStatus("paid")}
	err := evaluatePaymentGate(o, false)
	assert.Error(t, err)
}

func TestPaymentGateBlocksAwaitingPaymentHold(t *testing.T) {
	reason := domain.HoldAwaitingPayment
	o := domain.Order{ID: "o1", IsOnHold: true, HoldReason: &reason, PaymentStatus: domain.PaymentStatus("paid")}
	err := evaluatePaymentGate(o, false)
	assert.Error(t, err)
}

func TestPaymentGateBlocksUnsafeStatusWithoutOverride(t *testing.T) {
	o := domain.Order{ID: "o1", PaymentStatus: domain.PaymentStatus("pending")}
	err := evaluatePaymentGate(o, false)
	assert.Error(t, err)
}

func TestPaymentGatePassesUnsafeStatusWithOverride(t *testing.T) {
	o := domain.Order{ID: "o1", PaymentStatus: domain.PaymentStatus("pending"), PaymentHoldOverride: true}
	assert.NoError(t, evaluatePaymentGate(o, false))
}

func TestPaymentGateForceBypassesAllChecks(t *testing.T) {
	o := domain.Order{ID: "o1", IsCancelled: true, PaymentStatus: domain.PaymentStatus("pending")}
	assert.NoError(t, evaluatePaymentGate(o, true))
}

func TestMapFFNStatusToFulfillmentStateKnownAndUnknown(t *testing.T) {
	assert.Equal(t, domain.FulfillmentShipped, mapFFNStatusToFulfillmentState("SHIPPED"))
	assert.Equal(t, domain.FulfillmentPending, mapFFNStatusToFulfillmentState("SOMETHING_UNEXPECTED"))
}
