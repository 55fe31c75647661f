// Package audit implements Audit & Observability (spec.md §4.10):
// correlation job ids, the structured-log shape every long-lived
// operation attaches to, and thin wrappers over the OrderSyncLog and
// CronJobStatus persistence already exposed by internal/store/postgres.
package audit

import "github.com/google/uuid"

// Job id prefixes, one per long-lived operation kind (spec.md §4.10).
const (
	PrefixSyncIncremental = "sync-inc"
	PrefixSyncFull        = "sync-full"
	PrefixFFNPoll         = "ffn-poll"
	PrefixTokenRefresh    = "token-refresh"
	PrefixStockSync       = "stock-sync"
	PrefixInboundPoll     = "inbound-poll"
	PrefixCommerceReconcile = "commerce-reconcile"
	PrefixPaidOrderSweep  = "paid-sweep"
	PrefixWebhook         = "webhook"
)

// NewJobID mints a correlation job id with the given prefix, attached to
// every structured log line an operation emits.
func NewJobID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
