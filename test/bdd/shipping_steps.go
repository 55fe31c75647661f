package bdd

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/shipbridge/sync-engine/internal/queue"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

func (w *World) registerShippingSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the order already has ffnOutboundId "([^"]+)"$`, w.seedOrderWithOutbound)
	sc.Step(`^FFN reports outbound "([^"]+)" shipped with tracking "([^"]+)" via "([^"]+)" to "([^"]+)"$`, w.seedShippedOutbound)
	sc.Step(`^the FFN updates poll applies$`, w.applyFFNUpdates)
	sc.Step(`^the order has fulfillmentState "([^"]+)", tracking "([^"]+)", carrier "([^"]+)"$`, w.assertShippingApplied)
	sc.Step(`^a job is enqueued on "order-sync-to-commerce" with action "([^"]+)"$`, w.assertCommerceJobEnqueued)
}

func (w *World) seedOrderWithOutbound(outboundID string) error {
	return postgres.SetOrderFFNOutbound(w.orderID, outboundID)
}

func (w *World) seedShippedOutbound(outboundID, tracking, carrier, trackingURL string) error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	merchantNumber := order.OrderNumber
	if merchantNumber == "" {
		merchantNumber = order.ID
	}
	w.ffnFake.seedShippedOutbound(outboundID, merchantNumber, tracking, carrier, trackingURL)
	return nil
}

func (w *World) applyFFNUpdates() error {
	_, err := w.engine.ApplyFFNUpdates(context.Background(), w.tenantID, "")
	return err
}

func (w *World) assertShippingApplied(fulfillmentState, tracking, carrier string) error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	if string(order.FulfillmentState) != fulfillmentState {
		return fmt.Errorf("expected fulfillmentState %s got %s", fulfillmentState, order.FulfillmentState)
	}
	if order.TrackingNumber != tracking {
		return fmt.Errorf("expected tracking %s got %s", tracking, order.TrackingNumber)
	}
	if order.Carrier != carrier {
		return fmt.Errorf("expected carrier %s got %s", carrier, order.Carrier)
	}
	return nil
}

func (w *World) assertCommerceJobEnqueued(action string) error {
	var count int
	err := postgres.DB.QueryRow(`
		SELECT COUNT(*) FROM jobs
		WHERE queue_name = $1 AND payload->>'orderId' = $2 AND payload->>'action' = $3
	`, queue.QueueOrderSyncToCommerce, w.orderID, action).Scan(&count)
	if err != nil {
		return fmt.Errorf("query jobs: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("expected a %s job for order %s on queue %s, found none", action, w.orderID, queue.QueueOrderSyncToCommerce)
	}
	return nil
}
