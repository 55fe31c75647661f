package ffn

import (
	"context"
	"net/url"
)

// CreateInbound registers a restock shipment with FFN.
func (c *Client) CreateInbound(ctx context.Context, tenantID string, payload InboundPayload) (Inbound, error) {
	var in Inbound
	if err := c.doJSON(ctx, tenantID, "POST", "/inbounds", payload, &in); err != nil {
		return Inbound{}, err
	}
	return in, nil
}

// GetInbounds lists inbound shipments for a tenant.
func (c *Client) GetInbounds(ctx context.Context, tenantID string) ([]Inbound, error) {
	var page struct {
		Items []Inbound `json:"items"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", "/inbounds", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetInboundUpdates polls inbound status changes since a cursor, feeding
// the inbound-poll scheduler loop.
func (c *Client) GetInboundUpdates(ctx context.Context, tenantID, sinceCursor string) ([]Inbound, string, error) {
	path := "/inbounds/updates"
	if sinceCursor != "" {
		path += "?cursor=" + url.QueryEscape(sinceCursor)
	}
	var page struct {
		Items      []Inbound `json:"items"`
		NextCursor string    `json:"nextCursor"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", path, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextCursor, nil
}

// CancelInbound cancels a not-yet-received inbound shipment.
func (c *Client) CancelInbound(ctx context.Context, tenantID, inboundID string) error {
	return c.doJSON(ctx, tenantID, "POST", "/inbounds/"+url.PathEscape(inboundID)+"/cancel", nil, nil)
}
