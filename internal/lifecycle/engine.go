// Package lifecycle implements the Order Lifecycle Engine (spec.md §4.8):
// the fulfillment state machine, the payment gate guarding FFN dispatch,
// and the status back-propagation from FFN to Commerce.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/commerce"
	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/events"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// ffnStatusToFulfillmentState is the sole path that sets fulfillmentState
// from FFN (spec.md §4.8 table; §5 "the only path"). Webhook-driven
// status updates never write fulfillmentState.
var ffnStatusToFulfillmentState = map[string]domain.FulfillmentState{
	"NEW":       domain.FulfillmentPreparation,
	"OPEN":      domain.FulfillmentAcknowledged,
	"IN_PICK":   domain.FulfillmentPickProcess,
	"PICKED":    domain.FulfillmentPickProcess,
	"PACKING":   domain.FulfillmentPickProcess,
	"PACKED":    domain.FulfillmentLocked,
	"SHIPPED":   domain.FulfillmentShipped,
	"DELIVERED": domain.FulfillmentDelivered,
	"CANCELLED": domain.FulfillmentCanceled,
	"FAILED":    domain.FulfillmentFailedDelivery,
	"RETURNED":  domain.FulfillmentReturnedToSender,
}

func mapFFNStatusToFulfillmentState(status string) domain.FulfillmentState {
	if state, ok := ffnStatusToFulfillmentState[status]; ok {
		return state
	}
	return domain.FulfillmentPending
}

// operationalUpdateAllowlist are the fields eligible for an in-flight
// update before SHIPPED (spec.md §4.8).
var operationalUpdateAllowlist = map[string]bool{
	"priorityLevel":       true,
	"carrierSelection":    true,
	"carrierServiceLevel": true,
	"shippingAddress":     true,
	"warehouseNotes":      true,
	"pickingInstructions": true,
	"packingInstructions": true,
}

// CommerceResolver returns the CommerceClient that talks to channel's
// platform, so the engine never constructs clients itself.
type CommerceResolver interface {
	Resolve(channel domain.Channel) (commerce.CommerceClient, error)
}

// Engine drives orders through the fulfillment state machine.
type Engine struct {
	ffnClient *ffn.Client
	commerce  CommerceResolver
	enqueuer  queue.Enqueuer
	audit     *events.Producer
	logger    *zap.Logger
}

// New builds an Engine.
func New(ffnClient *ffn.Client, resolver CommerceResolver, enqueuer queue.Enqueuer, audit *events.Producer, logger *zap.Logger) *Engine {
	return &Engine{ffnClient: ffnClient, commerce: resolver, enqueuer: enqueuer, audit: audit, logger: logger}
}

func (e *Engine) publishAudit(ctx context.Context, eventType, orderID string, data map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Publish(ctx, orderID, events.Envelope{EventType: eventType, EventVersion: "v1", AggregateID: orderID, Data: data}); err != nil {
		e.logger.Warn("lifecycle: audit publish failed", zap.String("orderId", orderID), zap.Error(err))
	}
}

func (e *Engine) recordLog(orderID string, action domain.SyncLogAction, origin domain.SyncOrigin, target string, success bool, errMsg, externalID string, changed []string) {
	if err := postgres.InsertOrderSyncLog(domain.OrderSyncLog{
		OrderID:        orderID,
		Action:         action,
		Origin:         origin,
		TargetPlatform: target,
		Success:        success,
		ErrorMessage:   errMsg,
		ExternalID:     externalID,
		ChangedFields:  changed,
	}); err != nil {
		e.logger.Error("lifecycle: failed to write order sync log", zap.String("orderId", orderID), zap.Error(err))
	}
}

// SyncOrderToFFN implements the create-outbound procedure (spec.md §4.8).
// force bypasses the payment gate for administrative manual sync.
func (e *Engine) SyncOrderToFFN(ctx context.Context, orderID string, force bool) error {
	order, err := postgres.GetOrder(orderID)
	if err != nil {
		return err
	}

	if err := evaluatePaymentGate(order, force); err != nil {
		return err
	}

	ffnConfig, err := postgres.GetFFNConfig(order.TenantID)
	if err != nil {
		return err
	}
	if ffnConfig.WarehouseID == "" {
		return &errs.MissingWarehouse{TenantID: order.TenantID}
	}

	// Idempotency check A.
	if order.FFNOutboundID != nil && *order.FFNOutboundID != "" {
		return nil
	}

	// Idempotency check B.
	merchantNumber := order.OrderNumber
	if merchantNumber == "" {
		merchantNumber = order.ID
	}
	existing, found, err := e.ffnClient.GetOutboundByMerchantNumber(ctx, order.TenantID, merchantNumber)
	if err != nil {
		return err
	}
	if found {
		if err := postgres.SetOrderFFNOutbound(orderID, existing.ID); err != nil {
			return err
		}
		e.recordLog(orderID, domain.ActionUpdate, domain.OriginOfInternal, "ffn", true, "", existing.ID, []string{"ffnOutboundId", "syncStatus"})
		return nil
	}

	payload, err := e.buildOutboundPayload(order, ffnConfig)
	if err != nil {
		return err
	}

	outbound, err := e.ffnClient.CreateOutbound(ctx, order.TenantID, payload)
	if err != nil {
		e.recordLog(orderID, domain.ActionCreate, domain.OriginOfInternal, "ffn", false, err.Error(), "", nil)
		return err
	}

	if err := postgres.SetOrderFFNOutbound(orderID, outbound.ID); err != nil {
		return err
	}
	if err := postgres.UpdateOrderFulfillmentState(orderID, domain.FulfillmentPending); err != nil {
		return err
	}
	e.recordLog(orderID, domain.ActionCreate, domain.OriginOfInternal, "ffn", true, "", outbound.ID,
		[]string{"ffnOutboundId", "lastFfnSyncAt", "syncStatus", "fulfillmentState"})
	e.publishAudit(ctx, "OrderDispatchedToFFN", orderID, map[string]any{"outboundId": outbound.ID, "tenantId": order.TenantID})
	return nil
}

func (e *Engine) buildOutboundPayload(o domain.Order, cfg domain.FFNConfig) (ffn.OutboundPayload, error) {
	lines := make([]ffn.OutboundLine, 0, len(o.Items))
	autoComplete := false
	for _, item := range o.Items {
		lines = append(lines, ffn.OutboundLine{SKU: item.SKU, Quantity: item.Quantity})
		if item.ProductID != nil {
			product, err := postgres.GetProductBySKU(o.TenantID, item.SKU)
			if err == nil && product.IsBundle {
				autoComplete = true
			}
		}
	}

	merchantNumber := o.OrderNumber
	if merchantNumber == "" {
		merchantNumber = o.ID
	}

	return ffn.OutboundPayload{
		MerchantOrderNumber: merchantNumber,
		WarehouseID:         cfg.WarehouseID,
		ShippingAddress: ffn.AddressPayload{
			FirstName: o.ShippingAddress.FirstName,
			LastName:  o.ShippingAddress.LastName,
			Company:   o.ShippingAddress.Company,
			Street:    o.ShippingAddress.Street,
			Addition:  o.ShippingAddress.Addition,
			City:      o.ShippingAddress.City,
			Zip:       o.ShippingAddress.Zip,
			Country:   o.ShippingAddress.Country,
			Phone:     o.ShippingAddress.Phone,
			Email:     o.ShippingAddress.Email,
		},
		Lines:                       lines,
		AutoCompleteBillOfMaterials: autoComplete,
	}, nil
}

// CancelInFFN cancels an order's outbound in FFN (spec.md §4.8).
func (e *Engine) CancelInFFN(ctx context.Context, orderID, cancelledBy, reason string) error {
	order, err := postgres.GetOrder(orderID)
	if err != nil {
		return err
	}
	if order.FFNOutboundID == nil || *order.FFNOutboundID == "" {
		return &errs.NotFound{Kind: "ffnOutboundId", ID: orderID}
	}

	err = e.ffnClient.CancelOutbound(ctx, order.TenantID, *order.FFNOutboundID)
	terminalConfirmed := err == nil
	if err != nil {
		if _, ok := err.(*errs.NotUpdateable); !ok {
			return err
		}
	}

	if err := postgres.CancelOrder(orderID, cancelledBy, reason); err != nil {
		return err
	}
	if terminalConfirmed {
		if err := postgres.UpdateOrderFulfillmentState(orderID, domain.FulfillmentCanceled); err != nil {
			return err
		}
	}
	e.recordLog(orderID, domain.ActionCancel, domain.OriginOfInternal, "ffn", terminalConfirmed, "", *order.FFNOutboundID, []string{"isCancelled", "cancelledAt", "cancelledBy"})
	return nil
}

// OperationalUpdate applies an allowlisted field update to an in-flight
// outbound (spec.md §4.8). Returns errs.NotUpdateable once the order has
// passed SHIPPED, DELIVERED, or CANCELLED.
func (e *Engine) OperationalUpdate(ctx context.Context, orderID string, fields map[string]any, updatedBy string) error {
	order, err := postgres.GetOrder(orderID)
	if err != nil {
		return err
	}
	if order.FulfillmentState == domain.FulfillmentShipped ||
		order.FulfillmentState == domain.FulfillmentDelivered ||
		order.IsCancelled {
		return &errs.NotUpdateable{OrderID: orderID, CurrentState: string(order.FulfillmentState)}
	}

	for field := range fields {
		if !operationalUpdateAllowlist[field] {
			return &errs.ValidationError{Field: field, Detail: "field is not eligible for operational update"}
		}
	}

	if order.FFNOutboundID != nil && *order.FFNOutboundID != "" {
		ffnConfig, err := postgres.GetFFNConfig(order.TenantID)
		if err != nil {
			return err
		}
		payload, err := e.buildOutboundPayload(order, ffnConfig)
		if err != nil {
			return err
		}
		if _, err := e.ffnClient.UpdateOutbound(ctx, order.TenantID, *order.FFNOutboundID, payload); err != nil {
			return err
		}
	}

	e.recordLog(orderID, domain.ActionUpdate, domain.OriginOfInternal, "ffn", true, "", "", fieldNames(fields))
	return nil
}

func fieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	return names
}

// ApplyFFNUpdates drains getOutboundUpdates for tenantID starting at
// cursor and applies each update per the FFN-status mapping table (spec.md
// §4.8), returning the next cursor to persist.
func (e *Engine) ApplyFFNUpdates(ctx context.Context, tenantID, cursor string) (string, error) {
	for {
		updates, nextCursor, err := e.ffnClient.GetOutboundUpdates(ctx, tenantID, cursor)
		if err != nil {
			return cursor, err
		}

		for _, update := range updates {
			if err := e.applyOneOutboundUpdate(ctx, tenantID, update); err != nil {
				e.logger.Error("lifecycle: failed to apply outbound update",
					zap.String("tenantId", tenantID), zap.String("outboundId", update.ID), zap.Error(err))
			}
		}
		if nextCursor == "" || nextCursor == cursor || len(updates) == 0 {
			if nextCursor == "" {
				return cursor, nil
			}
			return nextCursor, nil
		}
		cursor = nextCursor
	}
}

// ReconcileStuckOutbound re-fetches a single outbound directly, for orders
// the cursor-based updates poll missed (spec.md §4.9 "stuck-fulfillment
// reconcile per tenant" — a dropped page or regressed cursor can otherwise
// leave an order's fulfillmentState stale indefinitely). It runs the fetched
// outbound back through the same applyOneOutboundUpdate path a normal
// updates-poll page would, so a stuck order converges the same way a
// healthy one does.
func (e *Engine) ReconcileStuckOutbound(ctx context.Context, tenantID, outboundID string) error {
	outbound, err := e.ffnClient.GetOutbound(ctx, tenantID, outboundID)
	if err != nil {
		return err
	}
	return e.applyOneOutboundUpdate(ctx, tenantID, outbound)
}

func (e *Engine) applyOneOutboundUpdate(ctx context.Context, tenantID string, update ffn.Outbound) error {
	order, err := postgres.GetOrderByFFNOutboundID(tenantID, update.ID)
	if err != nil {
		return err
	}
	if order.ID == "" {
		return nil // no canonical order tracks this outbound (yet)
	}

	newState := mapFFNStatusToFulfillmentState(update.Status)
	enteringShipped := newState == domain.FulfillmentShipped && order.FulfillmentState != domain.FulfillmentShipped

	if err := postgres.UpdateOrderFulfillmentState(order.ID, newState); err != nil {
		return err
	}

	if enteringShipped {
		if err := e.captureShippingNotification(ctx, tenantID, order.ID, update.ID); err != nil {
			e.logger.Warn("lifecycle: failed to capture shipping notification", zap.String("orderId", order.ID), zap.Error(err))
		}
		if _, err := e.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToCommerce, map[string]any{
			"tenantId": tenantID,
			"orderId":  order.ID,
			"action":   "fulfill",
		}, queue.EnqueueOptions{SingletonKey: "commerce-fulfill-" + order.ID}); err != nil {
			return err
		}
	}

	e.recordLog(order.ID, domain.ActionFulfill, domain.OriginOfFFN, "canonical", true, "", update.ID, []string{"fulfillmentState", "lastOperationalUpdateBy"})
	return nil
}

// captureShippingNotification fetches every package getShippingNotifications
// reports for outboundID and persists all of them (spec.md §4.8
// "multi-parcel: capture all packages; expose via getAllTrackingInfo"),
// while the first package's identifiers still populate the order's primary
// tracking fields for single-parcel consumers.
func (e *Engine) captureShippingNotification(ctx context.Context, tenantID, orderID, outboundID string) error {
	packages, err := e.ffnClient.GetShippingNotifications(ctx, tenantID, outboundID)
	if err != nil {
		return err
	}
	if len(packages) == 0 {
		return nil
	}

	tracked := make([]domain.TrackingPackage, 0, len(packages))
	for _, p := range packages {
		tracked = append(tracked, domain.TrackingPackage{
			TrackingNumber:        p.TrackingID(),
			Carrier:               p.FreightOption,
			TrackingURL:           p.TrackingURL,
			EstimatedDeliveryDate: p.EstimatedDeliveryDate,
		})
	}
	if err := postgres.SetOrderPackages(orderID, tracked); err != nil {
		return err
	}

	first := packages[0]
	shippedAt := time.Now()
	if first.ShippedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, first.ShippedAt); err == nil {
			shippedAt = parsed
		}
	}
	return postgres.UpdateOrderTracking(orderID, first.TrackingID(), first.TrackingURL, first.FreightOption, shippedAt)
}

// Hold places a hold on orderID, both canonically and in FFN by lowering
// priority to -5 (spec.md §4.8).
func (e *Engine) Hold(ctx context.Context, orderID string, reason domain.HoldReason, by string) error {
	order, err := postgres.GetOrder(orderID)
	if err != nil {
		return err
	}
	if err := postgres.SetOrderHold(orderID, true, &reason, by); err != nil {
		return err
	}
	if order.FFNOutboundID != nil && *order.FFNOutboundID != "" {
		if err := e.ffnClient.HoldOutbound(ctx, order.TenantID, *order.FFNOutboundID, string(reason)); err != nil {
			return err
		}
	}
	e.recordLog(orderID, domain.ActionHold, domain.OriginOfInternal, "canonical", true, "", "", []string{"isOnHold", "holdReason"})
	return nil
}

// Release lifts a hold on orderID. AWAITING_PAYMENT holds get special
// handling: paymentHoldOverride is set, an enhanced audit record is
// written, and if the order never reached FFN an expedited sync is
// enqueued (spec.md §4.8).
func (e *Engine) Release(ctx context.Context, orderID, releasedBy string) error {
	order, err := postgres.GetOrder(orderID)
	if err != nil {
		return err
	}
	wasAwaitingPayment := order.HoldReason != nil && *order.HoldReason == domain.HoldAwaitingPayment

	if err := postgres.SetOrderHold(orderID, false, nil, releasedBy); err != nil {
		return err
	}
	if order.FFNOutboundID != nil && *order.FFNOutboundID != "" {
		if err := e.ffnClient.ReleaseOutbound(ctx, order.TenantID, *order.FFNOutboundID); err != nil {
			return err
		}
	}
	e.recordLog(orderID, domain.ActionReleaseHold, domain.OriginOfInternal, "canonical", true, "", "", []string{"isOnHold", "holdReason"})

	if wasAwaitingPayment {
		if err := postgres.SetOrderPaymentHoldOverride(orderID, true); err != nil {
			return err
		}
		e.recordLog(orderID, domain.ActionPaymentHoldManuallyReleased, domain.OriginOfInternal, "canonical", true, "", "", []string{"paymentHoldOverride"})
		if order.FFNOutboundID == nil || *order.FFNOutboundID == "" {
			if _, err := e.enqueuer.Enqueue(ctx, queue.QueueOrderSyncToFFN, map[string]any{
				"tenantId": order.TenantID,
				"orderId":  orderID,
			}, queue.EnqueueOptions{
				SingletonKey: "ffn-sync-" + orderID,
				Priority:     1,
				RetryLimit:   3,
				RetryDelay:   60 * time.Second,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// SyncOrderToCommerce pushes fulfillment state back to the Commerce
// platform the order came from (spec.md §4.8 status back-propagation):
// "fulfill" reports the shipment and pushes tracking; any other action is
// a plain status push. A failure is recorded on the order and also
// returned, so ListStuckCommerceSyncOrders picks it back up for the
// stuck-commerce-sync sweep.
func (e *Engine) SyncOrderToCommerce(ctx context.Context, orderID, action string) error {
	order, err := postgres.GetOrder(orderID)
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

	update := commerce.OrderUpdate{
		Status:         string(order.Status),
		TrackingNumber: order.TrackingNumber,
		TrackingURL:    order.TrackingURL,
		Carrier:        order.Carrier,
	}

	var syncErr error
	switch action {
	case "fulfill":
		if syncErr = client.CreateFulfillment(ctx, order.ExternalOrderID, update); syncErr == nil && order.TrackingNumber != "" {
			syncErr = client.UpdateTracking(ctx, order.ExternalOrderID, update)
		}
	default:
		syncErr = client.UpdateOrderStatus(ctx, order.ExternalOrderID, update)
	}

	errMsg := ""
	if syncErr != nil {
		errMsg = syncErr.Error()
	}
	if markErr := postgres.MarkOrderCommerceSync(orderID, time.Now(), errMsg); markErr != nil {
		e.logger.Error("lifecycle: failed to record commerce sync outcome", zap.String("orderId", orderID), zap.Error(markErr))
	}
	e.recordLog(orderID, domain.ActionUpdate, domain.OriginOfFFN, "commerce", syncErr == nil, errMsg, "", []string{"lastSyncedToCommerce"})
	return syncErr
}
