package bdd

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

func (w *World) registerOrderSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a tenant with an active FFN configuration for warehouse "([^"]+)"$`, w.tenantWithFFNConfig)
	sc.Step(`^a webshop order "([^"]+)" with status "([^"]+)" and items:$`, w.seedWebshopOrder)
	sc.Step(`^the order-sync-to-ffn worker runs for the order$`, w.runOrderSyncToFFN)
	sc.Step(`^the canonical order has paymentStatus "([^"]+)" and fulfillmentState "([^"]+)"$`, w.assertOrderPaymentAndFulfillment)
	sc.Step(`^exactly one FFN createOutbound call was made$`, w.assertOneCreateOutboundCall)
	sc.Step(`^the order has a non-null ffnOutboundId with syncStatus "([^"]+)"$`, w.assertOutboundPersisted)
	sc.Step(`^a second order-sync-to-ffn worker run happens for the same order$`, w.runOrderSyncToFFNAgain)
}

func (w *World) tenantWithFFNConfig(warehouseID string) error {
	w.tenantID = "tenant-" + uuid.NewString()[:8]
	if err := postgres.InsertTenant(domain.Tenant{ID: w.tenantID, Name: w.tenantID}); err != nil {
		return err
	}

	encSecret, err := w.vault.Encrypt("client-secret")
	if err != nil {
		return err
	}
	if err := postgres.InsertFFNConfig(domain.FFNConfig{
		TenantID:              w.tenantID,
		ClientID:               "client-id",
		EncryptedClientSecret:  encSecret,
		Environment:            domain.EnvSandbox,
		WarehouseID:            warehouseID,
		IsActive:               true,
	}); err != nil {
		return err
	}

	w.channelID = "channel-" + uuid.NewString()[:8]
	encKey, err := w.vault.Encrypt("api-key")
	if err != nil {
		return err
	}
	encSecret2, err := w.vault.Encrypt("api-secret")
	if err != nil {
		return err
	}
	return postgres.InsertChannel(domain.Channel{
		ID:                 w.channelID,
		TenantID:           w.tenantID,
		Type:               domain.ChannelWebshop,
		BaseURL:            "https://webshop.example.test",
		EncryptedAPIKey:    encKey,
		EncryptedAPISecret: encSecret2,
		IsActive:           true,
		SyncEnabled:        true,
	})
}

func (w *World) seedWebshopOrder(externalOrderID, status string, table *godog.Table) error {
	rows, err := tableToMaps(table)
	if err != nil {
		return err
	}

	items := make([]domain.OrderItem, 0, len(rows))
	var total float64
	for _, row := range rows {
		qty := mustAtoi(row["quantity"])
		price := mustParseFloat(row["unit_price"])
		line := float64(qty) * price
		total += line
		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			SKU:         row["sku"],
			ProductName: row["sku"],
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   line,
		})
	}

	w.orderID = uuid.NewString()
	_, err = postgres.UpsertOrder(domain.Order{
		ID:              w.orderID,
		TenantID:        w.tenantID,
		ChannelID:       w.channelID,
		OrderNumber:     externalOrderID,
		ExternalOrderID: externalOrderID,
		OrderOrigin:     domain.OriginWebshop,
		Status:          domain.OrderStatusProcessing,
		FulfillmentState: domain.FulfillmentPending,
		PaymentStatus:   domain.PaymentStatus(status),
		Total:           total,
		Currency:        "EUR",
		SyncStatus:      domain.SyncPending,
		Items:           items,
		ShippingAddress: domain.Address{City: "Berlin", Zip: "10115", Country: "DE"},
	})
	return err
}

func (w *World) runOrderSyncToFFN() error {
	w.workerErr = w.engine.SyncOrderToFFN(context.Background(), w.orderID, false)
	return nil
}

func (w *World) runOrderSyncToFFNAgain() error {
	return w.runOrderSyncToFFN()
}

func (w *World) assertOrderPaymentAndFulfillment(paymentStatus, fulfillmentState string) error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	if string(order.PaymentStatus) != paymentStatus {
		return fmt.Errorf("expected paymentStatus %s got %s", paymentStatus, order.PaymentStatus)
	}
	if string(order.FulfillmentState) != fulfillmentState {
		return fmt.Errorf("expected fulfillmentState %s got %s", fulfillmentState, order.FulfillmentState)
	}
	return nil
}

func (w *World) assertOneCreateOutboundCall() error {
	if got := w.ffnFake.createOutboundCalls(); got != 1 {
		return fmt.Errorf("expected exactly one createOutbound call, got %d", got)
	}
	return nil
}

func (w *World) assertOutboundPersisted(syncStatus string) error {
	order, err := postgres.GetOrder(w.orderID)
	if err != nil {
		return err
	}
	if order.FFNOutboundID == nil || *order.FFNOutboundID == "" {
		return fmt.Errorf("expected a non-null ffnOutboundId")
	}
	if string(order.SyncStatus) != syncStatus {
		return fmt.Errorf("expected syncStatus %s got %s", syncStatus, order.SyncStatus)
	}
	return nil
}

func mustAtoi(s string) int {
	var n int
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

func mustParseFloat(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(s, "%f", &f)
	return f
}
