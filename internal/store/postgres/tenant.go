package postgres

import (
	"database/sql"
	"fmt"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// InsertTenant upserts a tenant row, matching the teacher's
// insert-on-conflict-update op shape.
func InsertTenant(t domain.Tenant) error {
	_, err := DB.Exec(`
		INSERT INTO tenants (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetTenant fetches a tenant by id.
func GetTenant(tenantID string) (domain.Tenant, error) {
	var t domain.Tenant
	err := DB.QueryRow(`SELECT id, name, created_at FROM tenants WHERE id = $1`, tenantID).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Tenant{}, fmt.Errorf("tenant not found: %s", tenantID)
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// ListActiveTenants returns every tenant with at least one active channel
// or FFN configuration, the driving list for every scheduler loop.
func ListActiveTenants() ([]domain.Tenant, error) {
	rows, err := DB.Query(`
		SELECT DISTINCT t.id, t.name, t.created_at
		FROM tenants t
		WHERE EXISTS (SELECT 1 FROM channels c WHERE c.tenant_id = t.id AND c.is_active)
		   OR EXISTS (SELECT 1 FROM ffn_configs f WHERE f.tenant_id = t.id AND f.is_active)
		ORDER BY t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
