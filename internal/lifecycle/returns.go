package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/commerce"
	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// commerceReturnUpdate maps a canonical Return onto the generic
// status-update payload Commerce clients accept.
func commerceReturnUpdate(r domain.Return) commerce.OrderUpdate {
	return commerce.OrderUpdate{
		Status: "return_" + string(r.Status),
		Reason: r.Reason,
	}
}

// SyncReturnToFFN registers a return against the order's FFN outbound and
// records the canonical Return row (spec.md §3 Return, §4.9 `return-sync-*`
// queue). The order must already have an FFN outbound; if it doesn't yet,
// the job is retried until the order sync catches up.
func (e *Engine) SyncReturnToFFN(ctx context.Context, orderID, reason string) error {
	order, err := postgres.GetOrder(orderID)
	if err != nil {
		return err
	}
	if order.FFNOutboundID == nil || *order.FFNOutboundID == "" {
		return &errs.TransientIO{Op: "sync return: order has no ffn outbound yet", Err: nil}
	}

	lines := make([]ffn.OutboundLine, 0, len(order.Items))
	items := make([]domain.ReturnItem, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, ffn.OutboundLine{
			SKU:      it.SKU,
			Quantity: it.Quantity,
		})
		items = append(items, domain.ReturnItem{
			ID:       uuid.NewString(),
			SKU:      it.SKU,
			Quantity: it.Quantity,
		})
	}

	ffnReturn, err := e.ffnClient.CreateReturn(ctx, order.TenantID, ffn.ReturnPayload{
		OutboundID: *order.FFNOutboundID,
		Reason:     reason,
		Lines:      lines,
	})
	if err != nil {
		return err
	}

	returnID, err := postgres.UpsertReturn(domain.Return{
		ID:          uuid.NewString(),
		TenantID:    order.TenantID,
		OrderID:     order.ID,
		Status:      domain.ReturnReceived,
		Reason:      reason,
		FFNReturnID: ffnReturn.ID,
		Items:       items,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	e.recordLog(order.ID, domain.ActionUpdate, domain.OriginOfInternal, "ffn", true, "", ffnReturn.ID, []string{"return"})
	e.logger.Info("lifecycle: return registered with ffn", zap.String("orderId", order.ID), zap.String("returnId", returnID), zap.String("ffnReturnId", ffnReturn.ID))
	return nil
}

// SyncReturnToCommerce tells Commerce about a return's current status,
// piggy-backing on the generic order-status-update call since the
// Commerce platforms don't expose a dedicated returns endpoint (spec.md
// §4.3 CommerceClient surface).
func (e *Engine) SyncReturnToCommerce(ctx context.Context, returnID string) error {
	ret, err := postgres.GetReturn(returnID)
	if err != nil {
		return err
	}
	order, err := postgres.GetOrder(ret.OrderID)
	if err != nil {
		return err
	}
	channel, err := postgres.GetChannel(order.ChannelID)
	if err != nil {
		return err
	}
	client, err := e.commerce.Resolve(channel)
	if err != nil {
		return err
	}

	if err := client.UpdateOrderStatus(ctx, order.ExternalOrderID, commerceReturnUpdate(ret)); err != nil {
		return err
	}

	e.recordLog(order.ID, domain.ActionUpdate, domain.OriginOfFFN, "commerce", true, "", ret.ID, []string{"returnStatus"})
	return nil
}
