package ffn

import "context"

// GetFulfillers lists the fulfillers available to a tenant's FFN account.
func (c *Client) GetFulfillers(ctx context.Context, tenantID string) ([]Fulfiller, error) {
	var page struct {
		Items []Fulfiller `json:"items"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", "/fulfillers", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetWarehouses lists the warehouses available to a tenant's FFN account.
func (c *Client) GetWarehouses(ctx context.Context, tenantID string) ([]Warehouse, error) {
	var page struct {
		Items []Warehouse `json:"items"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", "/warehouses", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetShippingMethods lists the shipping methods FFN supports.
func (c *Client) GetShippingMethods(ctx context.Context, tenantID string) ([]ShippingMethod, error) {
	var page struct {
		Items []ShippingMethod `json:"items"`
	}
	if err := c.doJSON(ctx, tenantID, "GET", "/shipping-methods", nil, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}
