package commerce

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shipbridge/sync-engine/internal/domain"
)

func TestStorefrontOrderToDomainMapsStatus(t *testing.T) {
	o := storefrontOrderToDomain(storefrontOrderDTO{ID: "ext-1", Status: "on_hold", PaymentStatus: "authorized"})
	assert.Equal(t, domain.OrderStatusOnHold, o.Status)
	assert.Equal(t, domain.OriginStorefront, o.OrderOrigin)
}

func TestStorefrontUnknownStatusDefaultsToPending(t *testing.T) {
	o := storefrontOrderToDomain(storefrontOrderDTO{ID: "ext-2", Status: "something_new"})
	assert.Equal(t, domain.OrderStatusPending, o.Status)
}

func TestWebshopOrderToDomainMapsStatus(t *testing.T) {
	o := webshopOrderToDomain(webshopOrderDTO{OrderID: "ext-3", Status: "held"})
	assert.Equal(t, domain.OrderStatusOnHold, o.Status)
	assert.Equal(t, domain.OriginWebshop, o.OrderOrigin)
}

func TestOffsetFromCursorParsesOrDefaultsToZero(t *testing.T) {
	assert.Equal(t, 0, offsetFromCursor(""))
	assert.Equal(t, 100, offsetFromCursor("100"))
	assert.Equal(t, 0, offsetFromCursor("not-a-number"))
}
