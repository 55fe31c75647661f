// Package webhook implements the Webhook Processor (spec.md §4.7):
// platform-specific topic parsing, typed payload decoding via
// mitchellh/mapstructure, and idempotent dispatch into the durable queue.
package webhook

import (
	"fmt"
	"strings"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// Topic is a parsed webhook topic: a (resource, action) pair, regardless
// of which platform's wire delimiter produced it.
type Topic struct {
	Resource string
	Action   string
}

// ParseTopic parses a platform-specific topic string. Storefront uses
// "<resource>/<action>" (e.g. "orders/create"); Webshop uses
// "<resource>-<action>" (e.g. "orders-update") (spec.md §4.7).
func ParseTopic(origin domain.OrderOrigin, raw string) (Topic, error) {
	var sep string
	switch origin {
	case domain.OriginStorefront:
		sep = "/"
	case domain.OriginWebshop:
		sep = "-"
	default:
		return Topic{}, fmt.Errorf("unknown webhook origin: %s", origin)
	}

	idx := strings.Index(raw, sep)
	if idx < 0 {
		return Topic{}, fmt.Errorf("malformed %s topic %q: missing %q separator", origin, raw, sep)
	}
	return Topic{Resource: raw[:idx], Action: raw[idx+len(sep):]}, nil
}
