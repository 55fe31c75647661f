// Package ffn implements the FFN fulfillment-network client (spec.md
// §4.2): OAuth2 client-credentials token management with per-tenant
// refresh, and every outbound/product/inbound/return operation the
// lifecycle engine and scheduler call. Outbound HTTP calls follow the
// teacher's raw net/http + bytes.NewReader(json) style (internal/payment/
// object.go's Xendit call) generalized into a shared request helper.
package ffn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/shipbridge/sync-engine/internal/errs"
)

// tokenRefreshWindow is how far ahead of expiry ensureValidToken proactively
// refreshes, so an in-flight request never races a now-expired token.
const tokenRefreshWindow = 5 * time.Minute

// requestTimeout bounds every FFN HTTP call.
const requestTimeout = 30 * time.Second

// paginationDelay is the polite inter-page delay used by every paginated
// list operation, enforced via a rate limiter rather than time.Sleep so
// concurrent tenants share one throttle cleanly.
const paginationDelay = 200 * time.Millisecond

// productCacheSize bounds the SKU->product lookup cache (spec.md §4.2
// "memoize getProductByMerchantSku").
const productCacheSize = 2048

// TokenStore persists refreshed tokens; implemented by internal/store/postgres
// wiring in the composition root plus the vault for encryption.
type TokenStore interface {
	LoadTokens(ctx context.Context, tenantID string) (accessToken, refreshToken, clientID, clientSecret string, expiresAt time.Time, err error)
	SaveTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error
}

// Client is a per-tenant-aware FFN API client. One Client instance is
// shared across all tenants; per-tenant token state is guarded by a
// per-tenant mutex so concurrent requests for different tenants never
// block each other.
type Client struct {
	httpClient *http.Client
	baseURL    string
	store      TokenStore
	limiter    *rate.Limiter
	productLRU *lru.Cache

	tokenMu sync.Map // tenantID -> *sync.Mutex
}

// New constructs a Client against baseURL (sandbox or production, per
// config.FFNConfig.BaseURL()).
func New(baseURL string, store TokenStore) *Client {
	cache, _ := lru.New(productCacheSize)
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		store:      store,
		limiter:    rate.NewLimiter(rate.Every(paginationDelay), 1),
		productLRU: cache,
	}
}

func (c *Client) tenantLock(tenantID string) *sync.Mutex {
	v, _ := c.tokenMu.LoadOrStore(tenantID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ensureValidToken returns a usable access token for tenantID, refreshing
// it first if it expires within tokenRefreshWindow. Concurrent callers for
// the same tenant serialize on a per-tenant mutex so only one refresh
// happens at a time (spec.md §4.2).
func (c *Client) ensureValidToken(ctx context.Context, tenantID string) (string, error) {
	lock := c.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	accessToken, refreshToken, clientID, clientSecret, expiresAt, err := c.store.LoadTokens(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("load ffn tokens: %w", err)
	}

	if accessToken != "" && time.Until(expiresAt) > tokenRefreshWindow {
		return accessToken, nil
	}

	newAccess, newRefresh, expiresIn, err := c.refreshToken(ctx, clientID, clientSecret, refreshToken)
	if err != nil {
		return "", err
	}

	newExpiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
	if err := c.store.SaveTokens(ctx, tenantID, newAccess, newRefresh, newExpiresAt); err != nil {
		return "", fmt.Errorf("save ffn tokens: %w", err)
	}
	return newAccess, nil
}

// RefreshTokenProactively forces a refresh regardless of the expiry
// window, the scheduler's 12-hour proactive refresh loop (spec.md §4.9).
func (c *Client) RefreshTokenProactively(ctx context.Context, tenantID string) error {
	lock := c.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	_, refreshToken, clientID, clientSecret, _, err := c.store.LoadTokens(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load ffn tokens: %w", err)
	}

	newAccess, newRefresh, expiresIn, err := c.refreshToken(ctx, clientID, clientSecret, refreshToken)
	if err != nil {
		return err
	}

	newExpiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
	return c.store.SaveTokens(ctx, tenantID, newAccess, newRefresh, newExpiresAt)
}

func (c *Client) refreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (accessToken, newRefreshToken string, expiresIn int, err error) {
	form := url.Values{"client_id": {clientID}, "client_secret": {clientSecret}}
	if refreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewBufferString(form.Encode()))
	if reqErr != nil {
		return "", "", 0, fmt.Errorf("build token refresh request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return "", "", 0, &errs.TransientIO{Op: "ffn-token-refresh", Err: doErr}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", "", 0, &errs.TokenRevoked{Detail: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", 0, &errs.FFNApiError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", 0, fmt.Errorf("decode token refresh response: %w", err)
	}
	return payload.AccessToken, payload.RefreshToken, payload.ExpiresIn, nil
}

// doJSON performs an authenticated JSON request against the FFN API and
// decodes a 2xx response body into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, tenantID, method, path string, in, out any) error {
	token, err := c.ensureValidToken(ctx, tenantID)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal ffn request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build ffn request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errs.TransientIO{Op: "ffn-" + method + "-" + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &errs.TokenRevoked{TenantID: tenantID, Detail: string(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &errs.FFNApiError{Status: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode ffn response: %w", err)
		}
	}
	return nil
}

// throttlePage blocks until the pagination rate limiter allows the next
// page fetch, replacing a raw time.Sleep(200ms) with x/time/rate so all
// concurrent polls for a tenant share one limiter fairly.
func (c *Client) throttlePage(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}
