package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/ffn"
	"github.com/shipbridge/sync-engine/internal/store/postgres"
)

// SyncProductToFFN registers a canonical product with FFN, or pushes an
// update if it's already registered (spec.md §4.2 product catalog sync).
// Mirrors SyncOrderToFFN's two-stage idempotency check: a product already
// carrying an ffnProductId is just pushed as an update; one without is
// checked against FFN's own SKU index before a create is attempted, so a
// product FFN already knows about (created out-of-band, or from a retried
// job whose DB write was lost) is attached instead of duplicated.
func (e *Engine) SyncProductToFFN(ctx context.Context, tenantID, sku string) error {
	product, err := postgres.GetProductBySKU(tenantID, sku)
	if err != nil {
		return err
	}

	payload := ffn.ProductPayload{
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		Weight:      product.Weight,
		ImageURL:    product.ImageURL,
	}

	if product.FFNProductID != nil && *product.FFNProductID != "" {
		if _, err := e.ffnClient.UpdateProduct(ctx, tenantID, *product.FFNProductID, payload); err != nil {
			return err
		}
		product.SyncStatus = domain.SyncSynced
		_, err := postgres.UpsertProduct(product)
		return err
	}

	if existing, err := e.ffnClient.GetProductByMerchantSku(ctx, tenantID, sku); err == nil && existing.ID != "" {
		product.FFNProductID = &existing.ID
		product.SyncStatus = domain.SyncSynced
		_, err := postgres.UpsertProduct(product)
		if err != nil {
			return err
		}
		e.logger.Info("lifecycle: product attached to existing ffn product", zap.String("sku", sku), zap.String("ffnProductId", existing.ID))
		return nil
	}

	created, err := e.ffnClient.CreateProduct(ctx, tenantID, payload)
	if err != nil {
		product.SyncStatus = domain.SyncError
		postgres.UpsertProduct(product)
		return err
	}

	product.FFNProductID = &created.ID
	product.SyncStatus = domain.SyncSynced
	if _, err := postgres.UpsertProduct(product); err != nil {
		return err
	}
	e.logger.Info("lifecycle: product created in ffn", zap.String("sku", sku), zap.String("ffnProductId", created.ID))
	return nil
}
