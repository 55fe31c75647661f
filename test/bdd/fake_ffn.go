package bdd

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/shipbridge/sync-engine/internal/ffn"
)

// fakeFFNServer is a minimal in-memory stand-in for the FFN API (spec.md
// §4.2), playing the httptest.Server role the teacher's startTestAPI plays
// for its own API fake in test/bdd/bdd_test.go. Only the handful of
// endpoints the scenarios below exercise are implemented.
type fakeFFNServer struct {
	mu sync.Mutex

	tokenRevoked bool

	outbounds       map[string]*ffn.Outbound
	byMerchantNum   map[string]string // merchantOrderNumber -> outbound id
	createCalls     int
	nextID          int
	pendingUpdates  []ffn.Outbound
	shippingNotices map[string][]ffn.ShippingPackage // outbound id -> packages
}

func newFakeFFNServer() *fakeFFNServer {
	return &fakeFFNServer{
		outbounds:       make(map[string]*ffn.Outbound),
		byMerchantNum:   make(map[string]string),
		shippingNotices: make(map[string][]ffn.ShippingPackage),
	}
}

func (f *fakeFFNServer) createOutboundCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

// seedShippedOutbound registers an outbound directly as already SHIPPED,
// for scenarios that start from "FFN already reports shipped" (S4).
func (f *fakeFFNServer) seedShippedOutbound(outboundID, merchantOrderNumber, tracking, carrier, trackingURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbounds[outboundID] = &ffn.Outbound{ID: outboundID, MerchantOrderNumber: merchantOrderNumber, Status: "SHIPPED"}
	f.byMerchantNum[merchantOrderNumber] = outboundID
	f.pendingUpdates = append(f.pendingUpdates, ffn.Outbound{ID: outboundID, MerchantOrderNumber: merchantOrderNumber, Status: "SHIPPED"})
	f.shippingNotices[outboundID] = append(f.shippingNotices[outboundID], ffn.ShippingPackage{
		FreightOption: carrier,
		TrackingURL:   trackingURL,
		Identifiers:   []ffn.ShippingIdentifier{{Type: "TrackingId", Value: tracking}},
	})
}

func (f *fakeFFNServer) revokeToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenRevoked = true
}

func (f *fakeFFNServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/oauth/token" && r.Method == http.MethodPost:
		f.handleToken(w, r)
	case r.URL.Path == "/outbounds" && r.Method == http.MethodPost:
		f.handleCreateOutbound(w, r)
	case r.URL.Path == "/outbounds" && r.Method == http.MethodGet:
		f.handleListOutbounds(w, r)
	case r.URL.Path == "/outbounds/updates" && r.Method == http.MethodGet:
		f.handleOutboundUpdates(w, r)
	case strings.HasSuffix(r.URL.Path, "/shipping-notifications") && r.Method == http.MethodGet:
		f.handleShippingNotifications(w, r)
	case strings.HasSuffix(r.URL.Path, "/cancel"), strings.HasSuffix(r.URL.Path, "/hold"), strings.HasSuffix(r.URL.Path, "/release"):
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeFFNServer) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	revoked := f.tokenRevoked
	f.mu.Unlock()

	if revoked {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`Token has been revoked`))
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "fake-access-token",
		"refresh_token": "fake-refresh-token",
		"expires_in":    3600,
	})
}

func (f *fakeFFNServer) handleCreateOutbound(w http.ResponseWriter, r *http.Request) {
	var payload ffn.OutboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.createCalls++
	f.nextID++
	id := "ob-" + strconv.Itoa(f.nextID)
	out := &ffn.Outbound{ID: id, MerchantOrderNumber: payload.MerchantOrderNumber, Status: "NEW"}
	f.outbounds[id] = out
	f.byMerchantNum[payload.MerchantOrderNumber] = id
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeFFNServer) handleListOutbounds(w http.ResponseWriter, r *http.Request) {
	merchantNumber := r.URL.Query().Get("merchantOrderNumber")

	f.mu.Lock()
	defer f.mu.Unlock()

	var items []ffn.Outbound
	if id, ok := f.byMerchantNum[merchantNumber]; ok {
		items = append(items, *f.outbounds[id])
	}
	_ = json.NewEncoder(w).Encode(ffn.OutboundPage{Items: items})
}

func (f *fakeFFNServer) handleOutboundUpdates(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	items := f.pendingUpdates
	f.pendingUpdates = nil
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(ffn.OutboundPage{Items: items, NextCursor: "cursor-1"})
}

func (f *fakeFFNServer) handleShippingNotifications(w http.ResponseWriter, r *http.Request) {
	outboundID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/outbounds/"), "/shipping-notifications")

	f.mu.Lock()
	packages := f.shippingNotices[outboundID]
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(packages)
}
