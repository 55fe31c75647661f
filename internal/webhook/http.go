package webhook

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
)

// RegisterRoutes mounts the Storefront and Webshop webhook endpoints on
// mux, each tenant-scoped by a path segment (spec.md §4.7: webhooks carry
// no tenant header, so the registration URL itself identifies the
// tenant).
func RegisterRoutes(mux *http.ServeMux, proc *Processor, logger *zap.Logger) {
	mux.Handle("/webhooks/storefront/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(proc, logger, domain.OriginStorefront, "/webhooks/storefront/", w, r)
	}), "storefront-webhook"))

	mux.Handle("/webhooks/webshop/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle(proc, logger, domain.OriginWebshop, "/webhooks/webshop/", w, r)
	}), "webshop-webhook"))
}

func handle(proc *Processor, logger *zap.Logger, origin domain.OrderOrigin, prefix string, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tenantID := r.URL.Path[len(prefix):]
	if tenantID == "" {
		http.Error(w, "missing tenant id in path", http.StatusBadRequest)
		return
	}

	rawTopic := topicHeader(origin, r)
	if rawTopic == "" {
		http.Error(w, "missing topic header", http.StatusBadRequest)
		return
	}

	topic, err := ParseTopic(origin, rawTopic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	if err := proc.Dispatch(r.Context(), tenantID, origin, topic, payload); err != nil {
		if _, ok := err.(*errs.ValidationError); ok {
			logger.Warn("webhook: rejecting malformed payload, not retried",
				zap.String("tenantId", tenantID), zap.String("topic", rawTopic), zap.Error(err))
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "skipped", "reason": err.Error()})
			return
		}
		logger.Error("webhook: dispatch failed", zap.String("tenantId", tenantID), zap.Error(err))
		http.Error(w, "failed to enqueue webhook event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "received"})
}

// topicHeader reads the platform-specific topic header: Storefront sends
// "X-Storefront-Topic", Webshop sends "X-Webshop-Topic".
func topicHeader(origin domain.OrderOrigin, r *http.Request) string {
	switch origin {
	case domain.OriginStorefront:
		return r.Header.Get("X-Storefront-Topic")
	case domain.OriginWebshop:
		return r.Header.Get("X-Webshop-Topic")
	default:
		return ""
	}
}
