package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// UpsertOrder inserts or updates an order and its line items by the
// natural key (tenant_id, external_order_id), in a single transaction so
// the order row and its items never disagree after a partial failure.
//
// fulfillment_state is FFN-owned (spec.md §4.8): lifecycle.ApplyFFNUpdates
// is the only writer once an order exists, so the ON CONFLICT branch never
// touches it here. On first insert a Commerce-sourced order never carries
// one, so it defaults to PENDING rather than landing as "".
func UpsertOrder(o domain.Order) (string, error) {
	if o.FulfillmentState == "" {
		o.FulfillmentState = domain.FulfillmentPending
	}

	var id string
	err := withTx(func(tx *sql.Tx) error {
		err := tx.QueryRow(`
			INSERT INTO orders (
				id, tenant_id, channel_id, order_number, external_order_id, order_origin,
				status, fulfillment_state, payment_status, is_on_hold, hold_reason,
				hold_placed_at, hold_placed_by, payment_hold_override,
				shipping_address, billing_address, total, currency,
				ffn_outbound_id, sync_status, priority_level, is_cancelled, is_replacement
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23
			)
			ON CONFLICT (tenant_id, external_order_id) DO UPDATE SET
				status = EXCLUDED.status,
				payment_status = EXCLUDED.payment_status,
				is_on_hold = EXCLUDED.is_on_hold,
				hold_reason = EXCLUDED.hold_reason,
				total = EXCLUDED.total,
				sync_status = EXCLUDED.sync_status,
				updated_at = now()
			RETURNING id
		`, o.ID, o.TenantID, o.ChannelID, o.OrderNumber, o.ExternalOrderID, o.OrderOrigin,
			o.Status, o.FulfillmentState, o.PaymentStatus, o.IsOnHold, o.HoldReason,
			nullTime(o.HoldPlacedAt), nullString(o.HoldPlacedBy), o.PaymentHoldOverride,
			marshalAddress(o.ShippingAddress), marshalAddress(o.BillingAddress), o.Total, o.Currency,
			o.FFNOutboundID, o.SyncStatus, o.PriorityLevel, o.IsCancelled, o.IsReplacement).
			Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert order: %w", err)
		}

		for _, item := range o.Items {
			_, err := tx.Exec(`
				INSERT INTO order_items (id, order_id, product_id, sku, product_name, quantity, unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (order_id, sku) DO UPDATE SET
					quantity = EXCLUDED.quantity,
					unit_price = EXCLUDED.unit_price,
					line_total = EXCLUDED.line_total
			`, item.ID, id, item.ProductID, item.SKU, item.ProductName, item.Quantity, item.UnitPrice, item.LineTotal)
			if err != nil {
				return fmt.Errorf("upsert order item %s: %w", item.SKU, err)
			}
		}
		return nil
	})
	return id, err
}

// GetOrder fetches an order and its line items by canonical id.
func GetOrder(orderID string) (domain.Order, error) {
	o, err := scanOrder(DB.QueryRow(orderSelectCols+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return domain.Order{}, err
	}
	items, err := listOrderItems(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

// GetOrderByFFNOutboundID fetches an order by the FFN outbound id it was
// dispatched under, the lookup the FFN-updates poll loop uses to locate
// the canonical order for a status change (spec.md §4.8). Returns a zero
// Order with a nil error when no canonical row tracks ffnOutboundID yet,
// since an update can race ahead of the create-outbound write.
func GetOrderByFFNOutboundID(tenantID, ffnOutboundID string) (domain.Order, error) {
	o, err := scanOrderRow(DB.QueryRow(
		orderSelectCols+` FROM orders WHERE tenant_id = $1 AND ffn_outbound_id = $2`,
		tenantID, ffnOutboundID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, nil
	}
	if err != nil {
		return domain.Order{}, err
	}
	items, err := listOrderItems(o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

// GetOrderByExternalID fetches an order by its channel-scoped natural key,
// the lookup every webhook handler and poll loop uses for idempotency.
func GetOrderByExternalID(tenantID, externalOrderID string) (domain.Order, error) {
	o, err := scanOrder(DB.QueryRow(
		orderSelectCols+` FROM orders WHERE tenant_id = $1 AND external_order_id = $2`,
		tenantID, externalOrderID))
	if err != nil {
		return domain.Order{}, err
	}
	items, err := listOrderItems(o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

// ListOrdersAwaitingFFNSync returns a tenant's non-cancelled orders that
// have no FFN outbound yet, oldest first.
func ListOrdersAwaitingFFNSync(tenantID string) ([]domain.Order, error) {
	rows, err := DB.Query(orderSelectCols+`
		FROM orders
		WHERE tenant_id = $1 AND ffn_outbound_id IS NULL AND NOT is_cancelled
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list orders awaiting ffn sync: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListStuckCommerceSyncOrders finds SHIPPED orders whose commerce
// back-propagation has never succeeded, oldest first, capped at limit —
// the commerce-reconcile loop's working set (spec.md §4.9).
func ListStuckCommerceSyncOrders(tenantID string, limit int) ([]domain.Order, error) {
	rows, err := DB.Query(orderSelectCols+`
		FROM orders
		WHERE tenant_id = $1 AND fulfillment_state = $2
		  AND commerce_sync_error IS NOT NULL AND last_synced_to_commerce IS NULL
		ORDER BY created_at
		LIMIT $3
	`, tenantID, domain.FulfillmentShipped, limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck commerce sync orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListStuckFulfillmentOrders finds orders dispatched to FFN whose
// fulfillment state hasn't advanced in longer than staleAfter, oldest
// sync first, capped at limit — the commerce-reconcile loop's
// stuck-fulfillment working set (spec.md §4.9 "Also runs stuck-fulfillment
// reconcile per tenant"). These are orders the updates-poll cursor missed
// (a gap, a dropped page, a cursor that regressed) rather than orders
// simply still in progress at FFN.
func ListStuckFulfillmentOrders(tenantID string, staleAfter time.Duration, limit int) ([]domain.Order, error) {
	terminal := []string{
		string(domain.FulfillmentDelivered), string(domain.FulfillmentFailedDelivery),
		string(domain.FulfillmentReturnedToSender), string(domain.FulfillmentCanceled),
	}
	rows, err := DB.Query(orderSelectCols+`
		FROM orders
		WHERE tenant_id = $1
		  AND ffn_outbound_id IS NOT NULL
		  AND NOT (fulfillment_state = ANY($2))
		  AND last_ffn_sync_at < $3
		ORDER BY last_ffn_sync_at ASC
		LIMIT $4
	`, tenantID, terminal, time.Now().Add(-staleAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck fulfillment orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListPaidOrdersAwaitingFFNDispatch finds orders with a safe payment
// status that have never been dispatched to FFN, oldest first, capped at
// limit — the paid-order FFN sweep's working set (spec.md §4.9). The
// payment-status safe set and hold-reason exclusions mirror the payment
// gate in internal/lifecycle; this is the scheduler's pre-filter, not a
// substitute for the gate re-evaluated inside syncOrderToFFN.
func ListPaidOrdersAwaitingFFNDispatch(tenantID string, limit int) ([]domain.Order, error) {
	rows, err := DB.Query(orderSelectCols+`
		FROM orders
		WHERE tenant_id = $1
		  AND ffn_outbound_id IS NULL
		  AND NOT is_replacement
		  AND NOT is_cancelled
		  AND (
		    payment_hold_override
		    OR (
		      payment_status = ANY($2)
		      AND NOT (is_on_hold AND hold_reason = ANY($3))
		    )
		  )
		ORDER BY created_at
		LIMIT $4
	`, tenantID, safePaymentStatuses(), []string{string(domain.HoldAwaitingPayment), string(domain.HoldShippingMethodMismatch)}, limit)
	if err != nil {
		return nil, fmt.Errorf("list paid orders awaiting ffn dispatch: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func safePaymentStatuses() []string {
	return []string{"paid", "completed", "processing", "refunded", "partially_refunded", "authorized", "partially_paid"}
}

// UpdateOrderFulfillmentState advances the warehouse-progress axis,
// appending to the audit trail separately via InsertOrderSyncLog.
func UpdateOrderFulfillmentState(orderID string, state domain.FulfillmentState) error {
	_, err := DB.Exec(`
		UPDATE orders SET fulfillment_state = $1, updated_at = now() WHERE id = $2
	`, state, orderID)
	if err != nil {
		return fmt.Errorf("update order fulfillment state: %w", err)
	}
	return nil
}

// SetOrderHold records a hold being placed or released.
func SetOrderHold(orderID string, onHold bool, reason *domain.HoldReason, by string) error {
	_, err := DB.Exec(`
		UPDATE orders SET
			is_on_hold = $1,
			hold_reason = $2,
			hold_placed_at = CASE WHEN $1 THEN now() ELSE hold_placed_at END,
			hold_placed_by = CASE WHEN $1 THEN $3 ELSE hold_placed_by END,
			hold_released_at = CASE WHEN NOT $1 THEN now() ELSE hold_released_at END,
			hold_released_by = CASE WHEN NOT $1 THEN $3 ELSE hold_released_by END,
			updated_at = now()
		WHERE id = $4
	`, onHold, reason, by, orderID)
	if err != nil {
		return fmt.Errorf("set order hold: %w", err)
	}
	return nil
}

// SetOrderPaymentHoldOverride flips the manual-release override flag,
// permanently exempting the order from the payment-gate's safe-status
// check (spec.md §4.8 "manual release sets paymentHoldOverride = true").
func SetOrderPaymentHoldOverride(orderID string, override bool) error {
	_, err := DB.Exec(`UPDATE orders SET payment_hold_override = $1, updated_at = now() WHERE id = $2`, override, orderID)
	if err != nil {
		return fmt.Errorf("set order payment hold override: %w", err)
	}
	return nil
}

// SetOrderFFNOutbound records the FFN outbound id once the order has been
// created upstream, the idempotency marker for syncOrderToFFN.
func SetOrderFFNOutbound(orderID, ffnOutboundID string) error {
	_, err := DB.Exec(`
		UPDATE orders SET ffn_outbound_id = $1, last_ffn_sync_at = now(), sync_status = $3 WHERE id = $2
	`, ffnOutboundID, orderID, domain.SyncSynced)
	if err != nil {
		return fmt.Errorf("set order ffn outbound: %w", err)
	}
	return nil
}

// UpdateOrderTracking writes shipping tracking details reported by FFN,
// setting shipped_at only the first time a tracking number lands.
func UpdateOrderTracking(orderID, trackingNumber, trackingURL, carrier string, shippedAt time.Time) error {
	_, err := DB.Exec(`
		UPDATE orders SET
			tracking_number = $1, tracking_url = $2, carrier = $3,
			shipped_at = COALESCE(shipped_at, $4), updated_at = now()
		WHERE id = $5
	`, trackingNumber, trackingURL, carrier, shippedAt, orderID)
	if err != nil {
		return fmt.Errorf("update order tracking: %w", err)
	}
	return nil
}

// SetOrderPackages persists every parcel captured off a shipping
// notification, so multi-parcel orders keep all packages reachable instead
// of only the one written to the order's primary tracking fields.
func SetOrderPackages(orderID string, packages []domain.TrackingPackage) error {
	body, err := json.Marshal(packages)
	if err != nil {
		return fmt.Errorf("marshal order packages: %w", err)
	}
	if _, err := DB.Exec(`UPDATE orders SET packages = $1, updated_at = now() WHERE id = $2`, body, orderID); err != nil {
		return fmt.Errorf("set order packages: %w", err)
	}
	return nil
}

// GetAllTrackingInfo returns every parcel captured for orderID (spec.md
// §4.8 "expose via getAllTrackingInfo").
func GetAllTrackingInfo(orderID string) ([]domain.TrackingPackage, error) {
	var packagesJSON []byte
	err := DB.QueryRow(`SELECT packages FROM orders WHERE id = $1`, orderID).Scan(&packagesJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get all tracking info: %w", err)
	}
	var packages []domain.TrackingPackage
	if err := json.Unmarshal(packagesJSON, &packages); err != nil {
		return nil, fmt.Errorf("unmarshal order packages: %w", err)
	}
	return packages, nil
}

// MarkOrderCommerceSync records the outcome of an order-sync-to-commerce
// job: on success it stamps last_synced_to_commerce and clears any prior
// error, so ListStuckCommerceSyncOrders stops picking the order up; on
// failure it records the error and leaves last_synced_to_commerce alone.
func MarkOrderCommerceSync(orderID string, at time.Time, syncErr string) error {
	var err error
	if syncErr == "" {
		_, err = DB.Exec(`
			UPDATE orders SET last_synced_to_commerce = $1, commerce_sync_error = NULL WHERE id = $2
		`, at, orderID)
	} else {
		_, err = DB.Exec(`
			UPDATE orders SET commerce_sync_error = $1 WHERE id = $2
		`, syncErr, orderID)
	}
	if err != nil {
		return fmt.Errorf("mark order commerce sync: %w", err)
	}
	return nil
}

// CancelOrder marks an order cancelled: it sets isCancelled, the cancel
// audit fields and status CANCELLED. fulfillment_state is left untouched;
// CancelInFFN moves it to CANCELED only once FFN confirms the cancel.
func CancelOrder(orderID, cancelledBy, reason string) error {
	_, err := DB.Exec(`
		UPDATE orders SET
			is_cancelled = true,
			cancelled_at = now(),
			cancelled_by = $1,
			cancellation_reason = $2,
			status = $3,
			updated_at = now()
		WHERE id = $4
	`, cancelledBy, reason, domain.OrderStatusCancelled, orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

const orderSelectCols = `
	SELECT id, tenant_id, channel_id, order_number, external_order_id, order_origin,
	       status, fulfillment_state, payment_status, is_on_hold, hold_reason,
	       hold_placed_at, hold_placed_by, hold_released_at, hold_released_by,
	       payment_hold_override, shipping_address, billing_address, total, currency,
	       ffn_outbound_id, last_ffn_sync_at, sync_status, tracking_number, tracking_url,
	       carrier, packages, priority_level, is_cancelled, is_replacement, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	o, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		return domain.Order{}, fmt.Errorf("order not found")
	}
	return o, err
}

func scanOrderRow(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var holdReason sql.NullString
	var holdPlacedAt, holdReleasedAt, lastFFNSyncAt sql.NullTime
	var holdPlacedBy, holdReleasedBy sql.NullString
	var ffnOutboundID, trackingNumber, trackingURL, carrier sql.NullString
	var shippingJSON, billingJSON, packagesJSON []byte

	err := row.Scan(&o.ID, &o.TenantID, &o.ChannelID, &o.OrderNumber, &o.ExternalOrderID, &o.OrderOrigin,
		&o.Status, &o.FulfillmentState, &o.PaymentStatus, &o.IsOnHold, &holdReason,
		&holdPlacedAt, &holdPlacedBy, &holdReleasedAt, &holdReleasedBy,
		&o.PaymentHoldOverride, &shippingJSON, &billingJSON, &o.Total, &o.Currency,
		&ffnOutboundID, &lastFFNSyncAt, &o.SyncStatus, &trackingNumber, &trackingURL,
		&carrier, &packagesJSON, &o.PriorityLevel, &o.IsCancelled, &o.IsReplacement, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}

	if holdReason.Valid {
		hr := domain.HoldReason(holdReason.String)
		o.HoldReason = &hr
	}
	o.HoldPlacedAt = timeOrNil(holdPlacedAt)
	o.HoldReleasedAt = timeOrNil(holdReleasedAt)
	o.HoldPlacedBy = holdPlacedBy.String
	o.HoldReleasedBy = holdReleasedBy.String
	o.FFNOutboundID = strOrNil(ffnOutboundID)
	o.LastFFNSyncAt = timeOrNil(lastFFNSyncAt)
	o.TrackingNumber = trackingNumber.String
	o.TrackingURL = trackingURL.String
	o.Carrier = carrier.String
	_ = json.Unmarshal(shippingJSON, &o.ShippingAddress)
	_ = json.Unmarshal(billingJSON, &o.BillingAddress)
	_ = json.Unmarshal(packagesJSON, &o.Packages)
	return o, nil
}

func listOrderItems(orderID string) ([]domain.OrderItem, error) {
	rows, err := DB.Query(`
		SELECT id, order_id, product_id, sku, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = $1 ORDER BY sku
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var productID sql.NullString
		if err := rows.Scan(&it.ID, &it.OrderID, &productID, &it.SKU, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.ProductID = strOrNil(productID)
		out = append(out, it)
	}
	return out, rows.Err()
}

func marshalAddress(a domain.Address) []byte {
	b, _ := json.Marshal(a)
	return b
}
