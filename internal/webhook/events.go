package webhook

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/shipbridge/sync-engine/internal/errs"
)

// ProductEvent covers product create/update/delete payloads.
type ProductEvent struct {
	ExternalProductID string  `mapstructure:"id"`
	SKU                string `mapstructure:"sku"`
	Name               string `mapstructure:"name"`
	Price              float64 `mapstructure:"price"`
}

// OrderEvent covers order create/update/cancel/delete payloads.
type OrderEvent struct {
	ExternalOrderID string  `mapstructure:"id"`
	OrderNumber     string  `mapstructure:"order_number"`
	Status          string  `mapstructure:"status"`
	Total           float64 `mapstructure:"total"`
}

// RefundEvent covers refund create payloads.
type RefundEvent struct {
	ExternalOrderID string  `mapstructure:"order_id"`
	Amount          float64 `mapstructure:"amount"`
	Reason          string  `mapstructure:"reason"`
}

// decode converts a raw webhook payload (already JSON-decoded into
// map[string]any) into a typed struct, replacing the ad hoc
// `payload["field"].(string)` type assertions the teacher's
// internal/api/webhooks.go does inline with a single validated mapping
// step (spec.md §4.7).
func decode[T any](raw map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("build payload decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		var zero T
		return zero, &errs.ValidationError{Field: "payload", Detail: err.Error()}
	}
	return out, nil
}
