package bdd

import (
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// registerCommerceSyncSteps covers S5 at the store level: the steps write a
// failed and then a successful commerce sync through MarkOrderCommerceSync
// and check that the error is recorded, then cleared with the sync time set.
func (w *World) registerCommerceSyncSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the commerce sync for the order previously failed with "([^"]+)"$`, w.recordFailedCommerceSync)
	sc.Step(`^the order shows commerceSyncError "([^"]+)" and a null lastSyncedToCommerce$`, w.assertCommerceSyncFailed)
	sc.Step(`^the commerce sync for the order now succeeds$`, w.recordSuccessfulCommerceSync)
	sc.Step(`^the order shows a null commerceSyncError and a non-null lastSyncedToCommerce$`, w.assertCommerceSyncRecovered)
}

func (w *World) recordFailedCommerceSync(syncErr string) error {
	return postgres.MarkOrderCommerceSync(w.orderID, time.Time{}, syncErr)
}

func (w *World) assertCommerceSyncFailed(expectedErr string) error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	if order.CommerceSyncError != expectedErr {
		return fmt.Errorf("expected commerceSyncError %q got %q", expectedErr, order.CommerceSyncError)
	}
	if order.LastSyncedToCommerce != nil {
		return fmt.Errorf("expected null lastSyncedToCommerce, got %v", order.LastSyncedToCommerce)
	}
	return nil
}

func (w *World) recordSuccessfulCommerceSync() error {
	return postgres.MarkOrderCommerceSync(w.orderID, time.Now(), "")
}

func (w *World) assertCommerceSyncRecovered() error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	if order.CommerceSyncError != "" {
		return fmt.Errorf("expected null commerceSyncError, got %q", order.CommerceSyncError)
	}
	if order.LastSyncedToCommerce == nil {
		return fmt.Errorf("expected non-null lastSyncedToCommerce")
	}
	return nil
}
