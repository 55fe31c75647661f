// Package commerce implements the Commerce platform clients (spec.md
// §4.3): Storefront and Webshop, behind one CommerceClient interface.
// Idempotent GET polling goes through hashicorp/go-retryablehttp so a
// flaky network doesn't stall a sync loop; mutating calls (updateOrderStatus,
// createFulfillment, cancelOrder) use plain net/http deliberately — see
// DESIGN.md for why those must never auto-retry.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/shipbridge/sync-engine/internal/domain"
	"github.com/shipbridge/sync-engine/internal/errs"
)

const requestTimeout = 30 * time.Second

// overlapWindow is sent by Storefront.ListOrdersSince so orders updated
// within this window of the last poll are fetched again. Product listings
// and the Webshop client apply no overlap.
const overlapWindow = 10 * time.Minute

// OrderUpdate is the payload commerce status-push operations send.
type OrderUpdate struct {
	Status         string `json:"status,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// CommerceClient is the platform-agnostic surface the lifecycle engine and
// scheduler call; Storefront and Webshop each implement it with their own
// pagination and status-mapping conventions.
type CommerceClient interface {
	ListOrdersSince(ctx context.Context, cursor string) ([]domain.Order, string, error)
	GetOrder(ctx context.Context, externalOrderID string) (domain.Order, error)
	ListProductsSince(ctx context.Context, cursor string) ([]domain.Product, string, error)
	GetProduct(ctx context.Context, externalProductID string) (domain.Product, error)
	UpdateOrderStatus(ctx context.Context, externalOrderID string, update OrderUpdate) error
	CreateFulfillment(ctx context.Context, externalOrderID string, update OrderUpdate) error
	UpdateTracking(ctx context.Context, externalOrderID string, update OrderUpdate) error
	CancelOrder(ctx context.Context, externalOrderID, reason string) error
}

// baseClient holds the shared HTTP plumbing both platform clients embed,
// the teacher's "one shared client, thin per-call wrappers" shape.
type baseClient struct {
	baseURL       string
	apiKey        string
	apiSecret     string
	pollingClient *retryablehttp.Client // idempotent GET only
	mutatingHTTP  *http.Client          // POST/PATCH, no auto-retry
}

func newBaseClient(baseURL, apiKey, apiSecret string) baseClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = requestTimeout

	return baseClient{
		baseURL:       baseURL,
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		pollingClient: rc,
		mutatingHTTP:  &http.Client{Timeout: requestTimeout},
	}
}

// getJSON issues an idempotent GET through the retrying client.
func (b *baseClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build commerce get request: %w", err)
	}
	b.authenticate(req.Request)

	resp, err := b.pollingClient.Do(req)
	if err != nil {
		return &errs.TransientIO{Op: "commerce-get-" + path, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errs.CommerceApiError{Status: resp.StatusCode, Body: string(body)}
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode commerce response: %w", err)
		}
	}
	return nil
}

// mutateJSON issues a non-idempotent POST/PATCH without auto-retry, so a
// timeout after the platform already applied the change never replays it.
func (b *baseClient) mutateJSON(ctx context.Context, method, path string, in any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal commerce request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build commerce mutate request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	b.authenticate(req)

	resp, err := b.mutatingHTTP.Do(req)
	if err != nil {
		return &errs.TransientIO{Op: "commerce-" + method + "-" + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errs.CommerceApiError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func (b *baseClient) authenticate(req *http.Request) {
	req.Header.Set("X-Api-Key", b.apiKey)
	req.SetBasicAuth(b.apiKey, b.apiSecret)
}
