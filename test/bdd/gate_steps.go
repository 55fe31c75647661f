package bdd

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

func (w *World) registerGateSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the order is on hold with reason "([^"]+)"$`, w.putOrderOnHold)
	sc.Step(`^the worker run is blocked by the payment gate$`, w.assertBlockedByGate)
	sc.Step(`^the order still has a null ffnOutboundId$`, w.assertNoOutbound)
	sc.Step(`^a "([^"]+)" webhook marks the order paymentStatus "([^"]+)" and releases the hold$`, w.webhookReleasesHold)
	sc.Step(`^the second worker run succeeds with a non-null ffnOutboundId$`, w.assertSecondRunSucceeded)
}

func (w *World) putOrderOnHold(reason string) error {
	r := domain.HoldReason(reason)
	return w.engine.Hold(context.Background(), w.orderID, r, "test-setup")
}

func (w *World) assertBlockedByGate() error {
	if w.workerErr == nil {
		return fmt.Errorf("expected the payment gate to block this run, got no error")
	}
	if _, ok := w.workerErr.(*errs.BlockedByPaymentGate); !ok {
		return fmt.Errorf("expected BlockedByPaymentGate, got %T: %v", w.workerErr, w.workerErr)
	}
	return nil
}

func (w *World) assertNoOutbound() error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	if order.FFNOutboundID != nil && *order.FFNOutboundID != "" {
		return fmt.Errorf("expected null ffnOutboundId, got %s", *order.FFNOutboundID)
	}
	return nil
}

func (w *World) webhookReleasesHold(_, paymentStatus string) error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if _, err := postgres.UpsertOrder(order); err != nil {
		return err
	}
	return w.engine.Release(context.Background(), w.orderID, "webhook")
}

func (w *World) assertSecondRunSucceeded() error {
	if err := w.runOrderSyncToFFN(); err != nil {
		return fmt.Errorf("second run failed: %w", err)
	}
	if w.workerErr != nil {
		return fmt.Errorf("second run returned an error: %w", w.workerErr)
	}
	return w.assertOutboundPersisted(string(domain.SyncSynced))
}
