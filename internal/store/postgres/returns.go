package postgres

import (
	"database/sql"
	"fmt"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// UpsertReturn inserts or updates a return and its items in one
// transaction, mirroring UpsertOrder's shape.
func UpsertReturn(r domain.Return) (string, error) {
	var id string
	err := withTx(func(tx *sql.Tx) error {
		err := tx.QueryRow(`
			INSERT INTO returns (id, tenant_id, order_id, status, reason, ffn_return_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				reason = EXCLUDED.reason,
				ffn_return_id = COALESCE(EXCLUDED.ffn_return_id, returns.ffn_return_id)
			RETURNING id
		`, r.ID, r.TenantID, r.OrderID, r.Status, r.Reason, nullString(r.FFNReturnID), r.CreatedAt).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert return: %w", err)
		}

		for _, item := range r.Items {
			_, err := tx.Exec(`
				INSERT INTO return_items (id, return_id, sku, quantity)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (return_id, sku) DO UPDATE SET quantity = EXCLUDED.quantity
			`, item.ID, id, item.SKU, item.Quantity)
			if err != nil {
				return fmt.Errorf("upsert return item %s: %w", item.SKU, err)
			}
		}
		return nil
	})
	return id, err
}

const returnSelectCols = `SELECT id, tenant_id, order_id, status, reason, ffn_return_id, created_at`

func scanReturn(row interface {
	Scan(dest ...any) error
}) (domain.Return, error) {
	var r domain.Return
	var ffnReturnID sql.NullString
	if err := row.Scan(&r.ID, &r.TenantID, &r.OrderID, &r.Status, &r.Reason, &ffnReturnID, &r.CreatedAt); err != nil {
		return domain.Return{}, err
	}
	if ffnReturnID.Valid {
		r.FFNReturnID = ffnReturnID.String
	}
	return r, nil
}

// GetReturn fetches a single return by id.
func GetReturn(returnID string) (domain.Return, error) {
	r, err := scanReturn(DB.QueryRow(returnSelectCols+` FROM returns WHERE id = $1`, returnID))
	if err != nil {
		return domain.Return{}, fmt.Errorf("get return: %w", err)
	}
	items, err := listReturnItems(r.ID)
	if err != nil {
		return domain.Return{}, err
	}
	r.Items = items
	return r, nil
}

// GetReturnByFFNReturnID resolves the canonical return tracking an FFN
// return, the lookup the FFN return-updates poll needs since FFN only
// reports its own return id and status (spec.md §4.9 getReturnUpdates).
func GetReturnByFFNReturnID(tenantID, ffnReturnID string) (domain.Return, error) {
	r, err := scanReturn(DB.QueryRow(
		returnSelectCols+` FROM returns WHERE tenant_id = $1 AND ffn_return_id = $2`,
		tenantID, ffnReturnID))
	if err == sql.ErrNoRows {
		return domain.Return{}, nil
	}
	if err != nil {
		return domain.Return{}, fmt.Errorf("get return by ffn return id: %w", err)
	}
	items, err := listReturnItems(r.ID)
	if err != nil {
		return domain.Return{}, err
	}
	r.Items = items
	return r, nil
}

// UpdateReturnStatus advances a return's status, driven by the FFN
// return-updates poll.
func UpdateReturnStatus(returnID string, status domain.ReturnStatus) error {
	_, err := DB.Exec(`UPDATE returns SET status = $1 WHERE id = $2`, status, returnID)
	if err != nil {
		return fmt.Errorf("update return status: %w", err)
	}
	return nil
}

// ListReturnsByOrder returns every return tied to an order.
func ListReturnsByOrder(orderID string) ([]domain.Return, error) {
	rows, err := DB.Query(returnSelectCols + ` FROM returns WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list returns by order: %w", err)
	}
	defer rows.Close()

	var out []domain.Return
	for rows.Next() {
		r, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		items, err := listReturnItems(r.ID)
		if err != nil {
			return nil, err
		}
		r.Items = items
		out = append(out, r)
	}
	return out, rows.Err()
}

func listReturnItems(returnID string) ([]domain.ReturnItem, error) {
	rows, err := DB.Query(`
		SELECT id, return_id, sku, quantity FROM return_items WHERE return_id = $1 ORDER BY sku
	`, returnID)
	if err != nil {
		return nil, fmt.Errorf("list return items: %w", err)
	}
	defer rows.Close()

	var out []domain.ReturnItem
	for rows.Next() {
		var it domain.ReturnItem
		if err := rows.Scan(&it.ID, &it.ReturnID, &it.SKU, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan return item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
