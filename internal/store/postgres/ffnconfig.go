package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// InsertFFNConfig upserts a tenant's single FFN configuration.
func InsertFFNConfig(f domain.FFNConfig) error {
	_, err := DB.Exec(`
		INSERT INTO ffn_configs (
			tenant_id, client_id, encrypted_client_secret, encrypted_access_token,
			encrypted_refresh_token, token_expires_at, environment, fulfiller_id,
			warehouse_id, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			encrypted_client_secret = EXCLUDED.encrypted_client_secret,
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			environment = EXCLUDED.environment,
			fulfiller_id = EXCLUDED.fulfiller_id,
			warehouse_id = EXCLUDED.warehouse_id,
			is_active = EXCLUDED.is_active
	`, f.TenantID, f.ClientID, f.EncryptedClientSecret, f.EncryptedAccessToken,
		f.EncryptedRefreshToken, f.TokenExpiresAt, f.Environment, f.FulfillerID,
		f.WarehouseID, f.IsActive)
	if err != nil {
		return fmt.Errorf("insert ffn config: %w", err)
	}
	return nil
}

// GetFFNConfig fetches the FFN configuration for a tenant.
func GetFFNConfig(tenantID string) (domain.FFNConfig, error) {
	var f domain.FFNConfig
	err := DB.QueryRow(`
		SELECT tenant_id, client_id, encrypted_client_secret, encrypted_access_token,
		       encrypted_refresh_token, token_expires_at, environment, fulfiller_id,
		       warehouse_id, is_active
		FROM ffn_configs WHERE tenant_id = $1
	`, tenantID).Scan(&f.TenantID, &f.ClientID, &f.EncryptedClientSecret, &f.EncryptedAccessToken,
		&f.EncryptedRefreshToken, &f.TokenExpiresAt, &f.Environment, &f.FulfillerID,
		&f.WarehouseID, &f.IsActive)
	if err == sql.ErrNoRows {
		return domain.FFNConfig{}, fmt.Errorf("ffn config not found for tenant: %s", tenantID)
	}
	if err != nil {
		return domain.FFNConfig{}, fmt.Errorf("get ffn config: %w", err)
	}
	return f, nil
}

// UpdateFFNTokens persists a refreshed access/refresh token pair.
func UpdateFFNTokens(tenantID, encryptedAccessToken, encryptedRefreshToken string, expiresAt time.Time) error {
	_, err := DB.Exec(`
		UPDATE ffn_configs
		SET encrypted_access_token = $1, encrypted_refresh_token = $2, token_expires_at = $3
		WHERE tenant_id = $4
	`, encryptedAccessToken, encryptedRefreshToken, expiresAt, tenantID)
	if err != nil {
		return fmt.Errorf("update ffn tokens: %w", err)
	}
	return nil
}

// ListActiveFFNConfigs returns every tenant with an active FFN
// configuration, used by the token-refresh scheduler loop.
func ListActiveFFNConfigs() ([]domain.FFNConfig, error) {
	rows, err := DB.Query(`
		SELECT tenant_id, client_id, encrypted_client_secret, encrypted_access_token,
		       encrypted_refresh_token, token_expires_at, environment, fulfiller_id,
		       warehouse_id, is_active
		FROM ffn_configs WHERE is_active
		ORDER BY tenant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list active ffn configs: %w", err)
	}
	defer rows.Close()

	var out []domain.FFNConfig
	for rows.Next() {
		var f domain.FFNConfig
		if err := rows.Scan(&f.TenantID, &f.ClientID, &f.EncryptedClientSecret, &f.EncryptedAccessToken,
			&f.EncryptedRefreshToken, &f.TokenExpiresAt, &f.Environment, &f.FulfillerID,
			&f.WarehouseID, &f.IsActive); err != nil {
			return nil, fmt.Errorf("scan ffn config: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetFFNConfigInactive marks a configuration inactive after a TokenRevoked
// error, so the scheduler stops issuing work for the tenant.
func SetFFNConfigInactive(tenantID string) error {
	_, err := DB.Exec(`UPDATE ffn_configs SET is_active = false WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("set ffn config inactive: %w", err)
	}
	return nil
}
