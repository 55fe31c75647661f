package postgres

import (
	"database/sql"
	"fmt"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// UpsertProduct inserts or updates a product by its natural key
// (tenant_id, sku), matching the teacher's upsert-by-business-key pattern.
func UpsertProduct(p domain.Product) (string, error) {
	var id string
	err := DB.QueryRow(`
		INSERT INTO products (
			id, tenant_id, sku, name, description, unit_price, weight,
			available_stock, reserved_stock, ffn_product_id, sync_status, image_url, is_bundle
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tenant_id, sku) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unit_price = EXCLUDED.unit_price,
			weight = EXCLUDED.weight,
			available_stock = EXCLUDED.available_stock,
			reserved_stock = EXCLUDED.reserved_stock,
			ffn_product_id = COALESCE(EXCLUDED.ffn_product_id, products.ffn_product_id),
			sync_status = EXCLUDED.sync_status,
			image_url = EXCLUDED.image_url,
			is_bundle = EXCLUDED.is_bundle
		RETURNING id
	`, p.ID, p.TenantID, p.SKU, p.Name, p.Description, p.UnitPrice, p.Weight,
		p.AvailableStock, p.ReservedStock, p.FFNProductID, p.SyncStatus, p.ImageURL, p.IsBundle).
		Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert product: %w", err)
	}
	return id, nil
}

// GetProductBySKU fetches a product by its tenant-scoped SKU.
func GetProductBySKU(tenantID, sku string) (domain.Product, error) {
	var p domain.Product
	var ffnProductID sql.NullString
	err := DB.QueryRow(`
		SELECT id, tenant_id, sku, name, description, unit_price, weight,
		       available_stock, reserved_stock, ffn_product_id, sync_status, image_url, is_bundle
		FROM products WHERE tenant_id = $1 AND sku = $2
	`, tenantID, sku).Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Description, &p.UnitPrice, &p.Weight,
		&p.AvailableStock, &p.ReservedStock, &ffnProductID, &p.SyncStatus, &p.ImageURL, &p.IsBundle)
	if err == sql.ErrNoRows {
		return domain.Product{}, fmt.Errorf("product not found: tenant=%s sku=%s", tenantID, sku)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product by sku: %w", err)
	}
	p.FFNProductID = strOrNil(ffnProductID)
	return p, nil
}

// UpdateProductStock writes the available/reserved stock levels fetched
// from an FFN stock poll.
func UpdateProductStock(productID string, available, reserved int) error {
	_, err := DB.Exec(`
		UPDATE products SET available_stock = $1, reserved_stock = $2 WHERE id = $3
	`, available, reserved, productID)
	if err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	return nil
}

// LinkProductChannel upserts the channel-local external product id for a
// canonical product.
func LinkProductChannel(pc domain.ProductChannel) error {
	_, err := DB.Exec(`
		INSERT INTO product_channels (product_id, channel_id, external_product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, channel_id) DO UPDATE SET
			external_product_id = EXCLUDED.external_product_id
	`, pc.ProductID, pc.ChannelID, pc.ExternalProductID)
	if err != nil {
		return fmt.Errorf("link product channel: %w", err)
	}
	return nil
}

// UnlinkProductChannel removes a product's channel-scoped link, and deletes
// the canonical product itself if that was its last surviving link (spec.md
// §4.7 "product delete: remove ProductChannel link; if last link, delete
// Product").
func UnlinkProductChannel(productID, channelID string) error {
	return withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM product_channels WHERE product_id = $1 AND channel_id = $2
		`, productID, channelID); err != nil {
			return fmt.Errorf("unlink product channel: %w", err)
		}

		var remaining int
		if err := tx.QueryRow(`
			SELECT count(*) FROM product_channels WHERE product_id = $1
		`, productID).Scan(&remaining); err != nil {
			return fmt.Errorf("count remaining product channel links: %w", err)
		}
		if remaining == 0 {
			if _, err := tx.Exec(`DELETE FROM products WHERE id = $1`, productID); err != nil {
				return fmt.Errorf("delete product: %w", err)
			}
		}
		return nil
	})
}

// ListProductsByTenant returns every product for a tenant, the driving set
// for the stock-sync scheduler loop.
func ListProductsByTenant(tenantID string) ([]domain.Product, error) {
	rows, err := DB.Query(`
		SELECT id, tenant_id, sku, name, description, unit_price, weight,
		       available_stock, reserved_stock, ffn_product_id, sync_status, image_url, is_bundle
		FROM products WHERE tenant_id = $1
		ORDER BY sku
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list products by tenant: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var ffnProductID sql.NullString
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Description, &p.UnitPrice, &p.Weight,
			&p.AvailableStock, &p.ReservedStock, &ffnProductID, &p.SyncStatus, &p.ImageURL, &p.IsBundle); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.FFNProductID = strOrNil(ffnProductID)
		out = append(out, p)
	}
	return out, rows.Err()
}
