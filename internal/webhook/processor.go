package webhook

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// Processor dispatches a parsed Topic and raw payload to the handler for
// its (resource, action) pair, enqueuing follow-up sync jobs rather than
// doing any Commerce/FFN I/O inline (spec.md §4.7: webhooks must ack fast).
type Processor struct {
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

// NewProcessor builds a Processor against q, used to enqueue follow-up
// sync jobs once a webhook is parsed.
func NewProcessor(q queue.Enqueuer, logger *zap.Logger) *Processor {
	return &Processor{enqueuer: q, logger: logger}
}

// Dispatch routes a decoded webhook to its handler. Malformed payloads
// return a *errs.ValidationError, which the HTTP layer maps to a 200 so
// the platform stops retrying (spec.md §4.7 edge case: bad payload is
// logged and skipped, not retried).
func (p *Processor) Dispatch(ctx context.Context, tenantID string, origin domain.OrderOrigin, topic Topic, raw map[string]any) error {
	switch topic.Resource {
	case "orders", "order":
		return p.dispatchOrder(ctx, tenantID, origin, topic.Action, raw)
	case "products", "product":
		return p.dispatchProduct(ctx, tenantID, origin, topic.Action, raw)
	case "refunds", "refund":
		return p.dispatchRefund(ctx, tenantID, origin, topic.Action, raw)
	default:
		p.logger.Warn("webhook: unhandled resource", zap.String("resource", topic.Resource), zap.String("action", topic.Action))
		return nil
	}
}

func (p *Processor) dispatchOrder(ctx context.Context, tenantID string, origin domain.OrderOrigin, action string, raw map[string]any) error {
	evt, err := decode[OrderEvent](raw)
	if err != nil {
		return err
	}
	if evt.ExternalOrderID == "" {
		return &errs.ValidationError{Field: "id", Detail: "missing external order id"}
	}

	switch action {
	case "create", "update", "paid", "fulfilled":
		existing, lookupErr := postgres.GetOrderByExternalID(tenantID, evt.ExternalOrderID)
		if lookupErr == nil && existing.ID != "" {
			p.logger.Debug("webhook: order already known, enqueuing resync", zap.String("orderId", existing.ID))
		}
		_, err := p.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToFFN, map[string]any{
			"tenantId":        tenantID,
			"origin":          origin,
			"externalOrderId": evt.ExternalOrderID,
			"status":          evt.Status,
		}, queue.EnqueueOptions{SingletonKey: fmt.Sprintf("webhook-order-%s-%s", tenantID, evt.ExternalOrderID)})
		return err
	case "cancel", "cancelled", "canceled", "delete", "deleted":
		// spec.md §4.7 dispatch matrix treats order delete the same as
		// cancel: set isCancelled=true, status=CANCELLED, and enqueue an
		// FFN cancel when an ffnOutboundId is already on file.
		_, err := p.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToFFN, map[string]any{
			"tenantId":        tenantID,
			"origin":          origin,
			"externalOrderId": evt.ExternalOrderID,
			"action":          "cancel",
		}, queue.EnqueueOptions{})
		return err
	default:
		p.logger.Warn("webhook: unhandled order action", zap.String("action", action))
		return nil
	}
}

func (p *Processor) dispatchProduct(ctx context.Context, tenantID string, origin domain.OrderOrigin, action string, raw map[string]any) error {
	evt, err := decode[ProductEvent](raw)
	if err != nil {
		return err
	}
	if evt.SKU == "" {
		return &errs.ValidationError{Field: "sku", Detail: "missing sku"}
	}

	switch action {
	case "create", "update":
		_, err := p.enqueuer.Enqueue(ctx, queue.QueueProductSyncToFFN, map[string]any{
			"tenantId":           tenantID,
			"origin":             origin,
			"sku":                evt.SKU,
			"externalProductId":  evt.ExternalProductID,
		}, queue.EnqueueOptions{SingletonKey: fmt.Sprintf("webhook-product-%s-%s", tenantID, evt.SKU)})
		return err
	case "delete", "deleted":
		// spec.md §4.7: remove the ProductChannel link; if it was the
		// last one, delete the canonical Product too. Done off the
		// webhook path by the worker, same as every other dispatch.
		_, err := p.enqueuer.Enqueue(ctx, queue.QueueProductSyncToFFN, map[string]any{
			"tenantId": tenantID,
			"origin":   origin,
			"sku":      evt.SKU,
			"action":   "delete",
		}, queue.EnqueueOptions{SingletonKey: fmt.Sprintf("webhook-product-delete-%s-%s", tenantID, evt.SKU)})
		return err
	default:
		p.logger.Warn("webhook: unhandled product action", zap.String("action", action))
		return nil
	}
}

func (p *Processor) dispatchRefund(ctx context.Context, tenantID string, origin domain.OrderOrigin, action string, raw map[string]any) error {
	evt, err := decode[RefundEvent](raw)
	if err != nil {
		return err
	}
	if evt.ExternalOrderID == "" {
		return &errs.ValidationError{Field: "order_id", Detail: "missing order id"}
	}

	_, err = p.enqueuer.Enqueue(ctx, queue.QueueReturnSyncToFFN, map[string]any{
		"tenantId":        tenantID,
		"origin":          origin,
		"externalOrderId": evt.ExternalOrderID,
		"amount":          evt.Amount,
		"reason":          evt.Reason,
	}, queue.EnqueueOptions{})
	return err
}
