package ffn

import (
	"context"
	"fmt"
	"net/url"
)

// CreateProduct registers a canonical product with FFN.
func (c *Client) CreateProduct(ctx context.Context, tenantID string, payload ProductPayload) (Product, error) {
	var p Product
	if err := c.doJSON(ctx, tenantID, "POST", "/products", payload, &p); err != nil {
		return Product{}, err
	}
	c.productLRU.Add(cacheKey(tenantID, payload.SKU), p)
	return p, nil
}

// GetProductByMerchantSku fetches a product by SKU, serving from the
// read-through LRU cache first. On a cache miss it issues one GET to
// /products/by-sku/{sku}; it does not page through the product list.
func (c *Client) GetProductByMerchantSku(ctx context.Context, tenantID, sku string) (Product, error) {
	key := cacheKey(tenantID, sku)
	if cached, ok := c.productLRU.Get(key); ok {
		return cached.(Product), nil
	}

	var p Product
	if err := c.doJSON(ctx, tenantID, "GET", "/products/by-sku/"+url.PathEscape(sku), nil, &p); err != nil {
		return Product{}, err
	}
	c.productLRU.Add(key, p)
	return p, nil
}

// GetProductsWithStock fetches one page of products with current stock
// levels.
func (c *Client) GetProductsWithStock(ctx context.Context, tenantID, cursor string) (ProductPage, error) {
	path := "/products?withStock=true"
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}
	var page ProductPage
	if err := c.doJSON(ctx, tenantID, "GET", path, nil, &page); err != nil {
		return ProductPage{}, err
	}
	return page, nil
}

// GetAllProductsWithStock drains every page, throttled by the shared rate
// limiter between pages (spec.md §4.2 "200ms inter-page delay").
func (c *Client) GetAllProductsWithStock(ctx context.Context, tenantID string) ([]Product, error) {
	var all []Product
	cursor := ""
	for {
		page, err := c.GetProductsWithStock(ctx, tenantID, cursor)
		if err != nil {
			return nil, fmt.Errorf("get all products with stock: %w", err)
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

// UpdateProduct pushes updated product metadata to FFN and invalidates the
// SKU's cache entry so the next lookup reflects the change.
func (c *Client) UpdateProduct(ctx context.Context, tenantID, ffnProductID string, payload ProductPayload) (Product, error) {
	var p Product
	if err := c.doJSON(ctx, tenantID, "PATCH", "/products/"+url.PathEscape(ffnProductID), payload, &p); err != nil {
		return Product{}, err
	}
	c.productLRU.Remove(cacheKey(tenantID, payload.SKU))
	return p, nil
}

func cacheKey(tenantID, sku string) string {
	return tenantID + ":" + sku
}
