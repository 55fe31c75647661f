package ffn

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shipbridge/sync-engine/internal/errs"
)

// CreateOutbound creates an FFN outbound shipment for an order. Callers
// must perform the idempotency checks (spec.md §4.8 "checks A/B") before
// calling this — the client itself never checks for an existing outbound.
func (c *Client) CreateOutbound(ctx context.Context, tenantID string, payload OutboundPayload) (Outbound, error) {
	var out Outbound
	if err := c.doJSON(ctx, tenantID, "POST", "/outbounds", payload, &out); err != nil {
		return Outbound{}, err
	}
	return out, nil
}

// GetOutbound fetches a single outbound by FFN id.
func (c *Client) GetOutbound(ctx context.Context, tenantID, outboundID string) (Outbound, error) {
	var out Outbound
	if err := c.doJSON(ctx, tenantID, "GET", "/outbounds/"+url.PathEscape(outboundID), nil, &out); err != nil {
		return Outbound{}, err
	}
	return out, nil
}

// GetOutboundByMerchantNumber looks up an outbound by the merchant order
// number used at creation time, the second idempotency lookup (check B in
// Engine.SyncOrderToFFN) for an order with no ffnOutboundId stored yet.
func (c *Client) GetOutboundByMerchantNumber(ctx context.Context, tenantID, merchantOrderNumber string) (Outbound, bool, error) {
	var page OutboundPage
	q := url.Values{"merchantOrderNumber": {merchantOrderNumber}}
	if err := c.doJSON(ctx, tenantID, "GET", "/outbounds?"+q.Encode(), nil, &page); err != nil {
		return Outbound{}, false, err
	}
	if len(page.Items) == 0 {
		return Outbound{}, false, nil
	}
	return page.Items[0], true, nil
}

// GetAllOutbounds drains every page of the outbound listing for a tenant,
// pacing requests through the shared rate limiter instead of a raw sleep.
func (c *Client) GetAllOutbounds(ctx context.Context, tenantID string) ([]Outbound, error) {
	var all []Outbound
	cursor := ""
	for {
		page, err := c.getOutboundsPage(ctx, tenantID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
		if err := c.throttlePage(ctx); err != nil {
			return nil, err
		}
	}
}

func (c *Client) getOutboundsPage(ctx context.Context, tenantID, cursor string) (OutboundPage, error) {
	path := "/outbounds"
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}
	var page OutboundPage
	if err := c.doJSON(ctx, tenantID, "GET", path, nil, &page); err != nil {
		return OutboundPage{}, err
	}
	return page, nil
}

// UpdateOutbound applies an operational update to an outbound. Callers
// must first confirm the order's fulfillment state has not passed SHIPPED
// (spec.md §4.8 field-allowlist-before-SHIPPED rule); the client itself
// does not enforce that invariant.
func (c *Client) UpdateOutbound(ctx context.Context, tenantID, outboundID string, payload OutboundPayload) (Outbound, error) {
	var out Outbound
	if err := c.doJSON(ctx, tenantID, "PATCH", "/outbounds/"+url.PathEscape(outboundID), payload, &out); err != nil {
		return Outbound{}, err
	}
	return out, nil
}

// CancelOutbound cancels an outbound in FFN. Returns errs.NotUpdateable if
// FFN reports the outbound has already passed a cancellable state.
func (c *Client) CancelOutbound(ctx context.Context, tenantID, outboundID string) error {
	err := c.doJSON(ctx, tenantID, "POST", "/outbounds/"+url.PathEscape(outboundID)+"/cancel", nil, nil)
	if apiErr, ok := err.(*errs.FFNApiError); ok && apiErr.Status == 409 {
		return &errs.NotUpdateable{OrderID: outboundID, CurrentState: "already shipped or cancelled"}
	}
	return err
}

// HoldOutbound places an operator-initiated hold on an outbound.
func (c *Client) HoldOutbound(ctx context.Context, tenantID, outboundID, reason string) error {
	return c.doJSON(ctx, tenantID, "POST", "/outbounds/"+url.PathEscape(outboundID)+"/hold",
		map[string]string{"reason": reason}, nil)
}

// ReleaseOutbound releases a previously placed hold.
func (c *Client) ReleaseOutbound(ctx context.Context, tenantID, outboundID string) error {
	return c.doJSON(ctx, tenantID, "POST", "/outbounds/"+url.PathEscape(outboundID)+"/release", nil, nil)
}

// GetOutboundUpdates polls status changes since a cursor, feeding the FFN
// updates-poll scheduler loop. The cursor is a server-opaque token, not a
// timestamp, so callers persist it verbatim between polls.
func (c *Client) GetOutboundUpdates(ctx context.Context, tenantID, sinceCursor string) ([]Outbound, string, error) {
	path := "/outbounds/updates"
	if sinceCursor != "" {
		path += "?cursor=" + url.QueryEscape(sinceCursor)
	}
	var page OutboundPage
	if err := c.doJSON(ctx, tenantID, "GET", path, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextCursor, nil
}

// GetShippingNotifications fetches the ordered list of shipping packages
// FFN has recorded for outboundID (spec.md §4.2): one record per parcel,
// each carrying its own identifiers/freightOption/trackingUrl. The caller
// extracts the first "TrackingId" identifier per package.
func (c *Client) GetShippingNotifications(ctx context.Context, tenantID, outboundID string) ([]ShippingPackage, error) {
	var packages []ShippingPackage
	path := "/outbounds/" + url.PathEscape(outboundID) + "/shipping-notifications"
	if err := c.doJSON(ctx, tenantID, "GET", path, nil, &packages); err != nil {
		return nil, fmt.Errorf("get shipping notifications: %w", err)
	}
	return packages, nil
}
