package postgres

import (
	"fmt"
	"strings"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// InsertOrderSyncLog appends an immutable audit trail entry (spec.md §3,
// §4.10). Sync log rows are never updated, only inserted.
func InsertOrderSyncLog(l domain.OrderSyncLog) error {
	_, err := DB.Exec(`
		INSERT INTO order_sync_logs (
			id, order_id, action, origin, target_platform, success, error_message,
			external_id, changed_fields, previous_state, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, l.ID, l.OrderID, l.Action, l.Origin, l.TargetPlatform, l.Success, l.ErrorMessage,
		l.ExternalID, strings.Join(l.ChangedFields, ","), l.PreviousState, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order sync log: %w", err)
	}
	return nil
}

// ListOrderSyncLogs returns the full audit trail for an order, newest
// first.
func ListOrderSyncLogs(orderID string) ([]domain.OrderSyncLog, error) {
	rows, err := DB.Query(`
		SELECT id, order_id, action, origin, target_platform, success, error_message,
		       external_id, changed_fields, previous_state, created_at
		FROM order_sync_logs WHERE order_id = $1 ORDER BY created_at DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order sync logs: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderSyncLog
	for rows.Next() {
		var l domain.OrderSyncLog
		var changedFields string
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Action, &l.Origin, &l.TargetPlatform, &l.Success,
			&l.ErrorMessage, &l.ExternalID, &changedFields, &l.PreviousState, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order sync log: %w", err)
		}
		if changedFields != "" {
			l.ChangedFields = strings.Split(changedFields, ",")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
