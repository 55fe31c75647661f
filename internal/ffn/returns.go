package ffn

import (
	"context"
	"net/url"
)

// CreateReturn registers a return against an outbound with FFN.
func (c *Client) CreateReturn(ctx context.Context, tenantID string, payload ReturnPayload) (Return, error) {
	var r Return
	if err := c.doJSON(ctx, tenantID, "POST", "/returns", payload, &r); err != nil {
		return Return{}, err
	}
	return r, nil
}

// GetReturns lists returns for a tenant.
func (c *Client) GetReturns(ctx context.Context, tenantID string) ([]Return, error) {
	var page struct {
		Items []Return `json:"items"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", "/returns", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetReturnUpdates polls return status changes since a cursor.
func (c *Client) GetReturnUpdates(ctx context.Context, tenantID, sinceCursor string) ([]Return, string, error) {
	path := "/returns/updates"
	if sinceCursor != "" {
		path += "?cursor=" + url.QueryEscape(sinceCursor)
	}
	var page struct {
		Items      []Return `json:"items"`
		NextCursor string   `json:"nextCursor"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", path, nil, &page); err != nil {
		return nil, "", err
	}
	return page.Items, page.NextCursor, nil
}

// UpdateReturn updates return disposition (accepted/refunded/etc).
func (c *Client) UpdateReturn(ctx context.Context, tenantID, returnID string, payload ReturnPayload) (Return, error) {
	var r Return
	if err := c.doJSON(ctx, tenantID, "PATCH", "/returns/"+url.PathEscape(returnID), payload, &r); err != nil {
		return Return{}, err
	}
	return r, nil
}
