package lifecycle

import (
	"fmt"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
)

// evaluatePaymentGate enforces the three checks syncOrderToFFN must pass
// before calling createOutbound (spec.md §4.8). force bypasses all three,
// reserved for administrative manual sync.
func evaluatePaymentGate(o domain.Order, force bool) error {
	if force {
		return nil
	}

	if o.IsCancelled {
		return &errs.BlockedByPaymentGate{OrderID: o.ID, Reason: "order is cancelled"}
	}
	if o.IsOnHold && o.HoldReason != nil && *o.HoldReason == domain.HoldAwaitingPayment {
		return &errs.BlockedByPaymentGate{OrderID: o.ID, Reason: "on hold awaiting payment"}
	}
	if !o.PaymentStatus.IsSafe() && !o.PaymentHoldOverride {
		return &errs.BlockedByPaymentGate{OrderID: o.ID, Reason: fmt.Sprintf("payment status %q is not safe for dispatch", o.PaymentStatus)}
	}
	return nil
}
