package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/commerce"
	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/lifecycle"
	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// Handlers binds each durable queue name to the lifecycle engine,
// resolving webhook-originated payloads (which only carry a tenant id,
// origin, and platform-local id) into canonical rows before handing off
// (spec.md §4.6, §4.7).
type Handlers struct {
	engine   *lifecycle.Engine
	resolver *commerce.Resolver
	logger   *zap.Logger
}

// NewHandlers builds a Handlers bound to engine and resolver.
func NewHandlers(engine *lifecycle.Engine, resolver *commerce.Resolver, logger *zap.Logger) *Handlers {
	return &Handlers{engine: engine, resolver: resolver, logger: logger}
}

type orderSyncPayload struct {
	TenantID        string             `json:"tenantId"`
	OrderID         string             `json:"orderId"`
	Origin          domain.OrderOrigin `json:"origin"`
	ExternalOrderID string             `json:"externalOrderId"`
	Status          string             `json:"status"`
	Action          string             `json:"action"`
}

type productSyncPayload struct {
	TenantID          string             `json:"tenantId"`
	Origin            domain.OrderOrigin `json:"origin"`
	SKU               string             `json:"sku"`
	ExternalProductID string             `json:"externalProductId"`
	Action            string             `json:"action"`
}

type returnSyncPayload struct {
	TenantID        string             `json:"tenantId"`
	Origin          domain.OrderOrigin `json:"origin"`
	ExternalOrderID string             `json:"externalOrderId"`
	Amount          float64            `json:"amount"`
	Reason          string             `json:"reason"`
}

type returnCommercePayload struct {
	TenantID string `json:"tenantId"`
	ReturnID string `json:"returnId"`
}

// OrderSyncToFFN handles queue.QueueOrderSyncToFFN. Internal callers
// (scheduler) already know the canonical orderId; webhook callers only
// know the platform's externalOrderId and must be resolved first.
func (h *Handlers) OrderSyncToFFN(ctx context.Context, job queue.Job) error {
	var p orderSyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode order-sync-to-ffn payload: %w", err)
	}

	orderID := p.OrderID
	if orderID == "" {
		resolved, err := h.resolveOrderID(ctx, p.TenantID, p.Origin, p.ExternalOrderID)
		if err != nil {
			return err
		}
		orderID = resolved
	}

	if p.Action == "cancel" {
		order, err := postgres.GetOrder(orderID)
		if err != nil {
			return err
		}
		if order.FFNOutboundID == nil || *order.FFNOutboundID == "" {
			return postgres.CancelOrder(orderID, "webhook", "cancelled upstream by commerce platform")
		}
		return h.engine.CancelInFFN(ctx, orderID, "webhook", "cancelled upstream by commerce platform")
	}
	return h.engine.SyncOrderToFFN(ctx, orderID, false)
}

// OrderSyncToCommerce handles queue.QueueOrderSyncToCommerce, always
// enqueued by internal callers with a canonical orderId already known.
func (h *Handlers) OrderSyncToCommerce(ctx context.Context, job queue.Job) error {
	var p orderSyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode order-sync-to-commerce payload: %w", err)
	}
	return h.engine.SyncOrderToCommerce(ctx, p.OrderID, p.Action)
}

// ProductSyncToFFN handles queue.QueueProductSyncToFFN, always
// webhook-originated: the product may never have been polled from
// Commerce before, so it's fetched and upserted on first sight.
func (h *Handlers) ProductSyncToFFN(ctx context.Context, job queue.Job) error {
	var p productSyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode product-sync-to-ffn payload: %w", err)
	}
	if p.Action == "delete" {
		return h.unlinkProduct(p.TenantID, p.Origin, p.SKU)
	}
	if err := h.ensureProduct(ctx, p.TenantID, p.Origin, p.SKU, p.ExternalProductID); err != nil {
		return err
	}
	return h.engine.SyncProductToFFN(ctx, p.TenantID, p.SKU)
}

// unlinkProduct handles a product delete webhook (spec.md §4.7): remove the
// ProductChannel link for the channel the delete came from, and delete the
// canonical product itself if that was its last surviving link.
func (h *Handlers) unlinkProduct(tenantID string, origin domain.OrderOrigin, sku string) error {
	product, err := postgres.GetProductBySKU(tenantID, sku)
	if err != nil {
		return nil // never synced from commerce, nothing to unlink
	}
	channel, err := postgres.GetChannelByTenantAndType(tenantID, domain.ChannelType(origin))
	if err != nil {
		return err
	}
	return postgres.UnlinkProductChannel(product.ID, channel.ID)
}

// ReturnSyncToFFN handles queue.QueueReturnSyncToFFN, always
// webhook-originated from a refund event.
func (h *Handlers) ReturnSyncToFFN(ctx context.Context, job queue.Job) error {
	var p returnSyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode return-sync-to-ffn payload: %w", err)
	}
	orderID, err := h.resolveOrderID(ctx, p.TenantID, p.Origin, p.ExternalOrderID)
	if err != nil {
		return err
	}
	return h.engine.SyncReturnToFFN(ctx, orderID, p.Reason)
}

// ReturnSyncToCommerce handles queue.QueueReturnSyncToCommerce, enqueued
// by the scheduler once an FFN return-status update lands.
func (h *Handlers) ReturnSyncToCommerce(ctx context.Context, job queue.Job) error {
	var p returnCommercePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode return-sync-to-commerce payload: %w", err)
	}
	return h.engine.SyncReturnToCommerce(ctx, p.ReturnID)
}

// resolveOrderID turns a webhook's (tenantId, origin, externalOrderId)
// into a canonical order id, fetching and upserting the order from
// Commerce if this is the first time it's been seen (spec.md §4.7: order
// webhooks arrive before any poll may have seen the order).
func (h *Handlers) resolveOrderID(ctx context.Context, tenantID string, origin domain.OrderOrigin, externalOrderID string) (string, error) {
	if existing, err := postgres.GetOrderByExternalID(tenantID, externalOrderID); err == nil && existing.ID != "" {
		return existing.ID, nil
	}

	channel, err := postgres.GetChannelByTenantAndType(tenantID, domain.ChannelType(origin))
	if err != nil {
		return "", err
	}
	client, err := h.resolver.Resolve(channel)
	if err != nil {
		return "", err
	}
	order, err := client.GetOrder(ctx, externalOrderID)
	if err != nil {
		return "", err
	}
	order.TenantID = tenantID
	order.ChannelID = channel.ID
	order.OrderOrigin = origin
	if order.ExternalOrderID == "" {
		order.ExternalOrderID = externalOrderID
	}

	orderID, err := postgres.UpsertOrder(order)
	if err != nil {
		return "", err
	}
	h.logger.Info("worker: resolved order from commerce for webhook", zap.String("tenantId", tenantID), zap.String("orderId", orderID), zap.String("externalOrderId", externalOrderID))
	return orderID, nil
}

// ensureProduct makes sure a canonical product row exists for sku before
// the FFN sync runs, fetching it from Commerce by its channel-scoped
// external id on first sight.
func (h *Handlers) ensureProduct(ctx context.Context, tenantID string, origin domain.OrderOrigin, sku, externalProductID string) error {
	if _, err := postgres.GetProductBySKU(tenantID, sku); err == nil {
		return nil
	}

	channel, err := postgres.GetChannelByTenantAndType(tenantID, domain.ChannelType(origin))
	if err != nil {
		return err
	}
	client, err := h.resolver.Resolve(channel)
	if err != nil {
		return err
	}
	product, err := client.GetProduct(ctx, externalProductID)
	if err != nil {
		return err
	}
	product.TenantID = tenantID

	productID, err := postgres.UpsertProduct(product)
	if err != nil {
		return err
	}
	if err := postgres.LinkProductChannel(domain.ProductChannel{
		ProductID:         productID,
		ChannelID:         channel.ID,
		ExternalProductID: externalProductID,
	}); err != nil {
		return err
	}
	h.logger.Info("worker: resolved product from commerce for webhook", zap.String("tenantId", tenantID), zap.String("sku", sku))
	return nil
}
