package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// InsertChannel upserts a Commerce channel binding for a tenant.
func InsertChannel(c domain.Channel) error {
	_, err := DB.Exec(`
		INSERT INTO channels (
			id, tenant_id, type, base_url, encrypted_api_key, encrypted_api_secret,
			is_active, sync_enabled, token_revoked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			encrypted_api_key = EXCLUDED.encrypted_api_key,
			encrypted_api_secret = EXCLUDED.encrypted_api_secret,
			is_active = EXCLUDED.is_active,
			sync_enabled = EXCLUDED.sync_enabled,
			token_revoked = EXCLUDED.token_revoked
	`, c.ID, c.TenantID, c.Type, c.BaseURL, c.EncryptedAPIKey, c.EncryptedAPISecret,
		c.IsActive, c.SyncEnabled, c.TokenRevoked)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

// GetChannel fetches a channel by id.
func GetChannel(channelID string) (domain.Channel, error) {
	var c domain.Channel
	var lastOrderPoll, lastProductPoll sql.NullTime
	err := DB.QueryRow(`
		SELECT id, tenant_id, type, base_url, encrypted_api_key, encrypted_api_secret,
		       is_active, sync_enabled, last_order_poll_at, last_product_poll_at, token_revoked
		FROM channels WHERE id = $1
	`, channelID).Scan(&c.ID, &c.TenantID, &c.Type, &c.BaseURL, &c.EncryptedAPIKey, &c.EncryptedAPISecret,
		&c.IsActive, &c.SyncEnabled, &lastOrderPoll, &lastProductPoll, &c.TokenRevoked)
	if err == sql.ErrNoRows {
		return domain.Channel{}, fmt.Errorf("channel not found: %s", channelID)
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel: %w", err)
	}
	c.LastOrderPollAt = timeOrNil(lastOrderPoll)
	c.LastProductPollAt = timeOrNil(lastProductPoll)
	return c, nil
}

// ListActiveChannels returns every active, sync-enabled channel for a
// tenant, driving the per-tenant commerce polling loops.
func ListActiveChannels(tenantID string) ([]domain.Channel, error) {
	rows, err := DB.Query(`
		SELECT id, tenant_id, type, base_url, encrypted_api_key, encrypted_api_secret,
		       is_active, sync_enabled, last_order_poll_at, last_product_poll_at, token_revoked
		FROM channels
		WHERE tenant_id = $1 AND is_active AND sync_enabled AND NOT token_revoked
		ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		var c domain.Channel
		var lastOrderPoll, lastProductPoll sql.NullTime
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Type, &c.BaseURL, &c.EncryptedAPIKey, &c.EncryptedAPISecret,
			&c.IsActive, &c.SyncEnabled, &lastOrderPoll, &lastProductPoll, &c.TokenRevoked); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.LastOrderPollAt = timeOrNil(lastOrderPoll)
		c.LastProductPollAt = timeOrNil(lastProductPoll)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChannelByTenantAndType returns the first active, sync-enabled channel
// of the given type for a tenant. Webhook delivery identifies the tenant
// and platform type but not a specific channel id, so this is how the
// webhook-triggered sync handler resolves which channel's credentials to
// use when it needs to fetch an order or product that has not been seen
// by a commerce poll yet. Tenants with more than one channel of the same
// type should route webhooks per-channel instead; this call picks the
// lowest-id match, which is sufficient for the common one-channel-per-type
// case.
func GetChannelByTenantAndType(tenantID string, channelType domain.ChannelType) (domain.Channel, error) {
	var c domain.Channel
	var lastOrderPoll, lastProductPoll sql.NullTime
	err := DB.QueryRow(`
		SELECT id, tenant_id, type, base_url, encrypted_api_key, encrypted_api_secret,
		       is_active, sync_enabled, last_order_poll_at, last_product_poll_at, token_revoked
		FROM channels
		WHERE tenant_id = $1 AND type = $2 AND is_active AND sync_enabled AND NOT token_revoked
		ORDER BY id LIMIT 1
	`, tenantID, channelType).Scan(&c.ID, &c.TenantID, &c.Type, &c.BaseURL, &c.EncryptedAPIKey, &c.EncryptedAPISecret,
		&c.IsActive, &c.SyncEnabled, &lastOrderPoll, &lastProductPoll, &c.TokenRevoked)
	if err == sql.ErrNoRows {
		return domain.Channel{}, fmt.Errorf("no active %s channel for tenant %s", channelType, tenantID)
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel by tenant and type: %w", err)
	}
	c.LastOrderPollAt = timeOrNil(lastOrderPoll)
	c.LastProductPollAt = timeOrNil(lastProductPoll)
	return c, nil
}

// UpdateChannelLastOrderPoll advances the order-poll cursor.
func UpdateChannelLastOrderPoll(channelID string, at time.Time) error {
	_, err := DB.Exec(`UPDATE channels SET last_order_poll_at = $1 WHERE id = $2`, at, channelID)
	if err != nil {
		return fmt.Errorf("update channel last order poll: %w", err)
	}
	return nil
}

// SetChannelTokenRevoked flags a channel as revoked so the scheduler stops
// issuing work for it until an operator intervenes.
func SetChannelTokenRevoked(channelID string, revoked bool) error {
	_, err := DB.Exec(`UPDATE channels SET token_revoked = $1 WHERE id = $2`, revoked, channelID)
	if err != nil {
		return fmt.Errorf("set channel token revoked: %w", err)
	}
	return nil
}
