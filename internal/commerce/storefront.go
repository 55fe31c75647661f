package commerce

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// storefrontOrderStatus maps Storefront's wire status to our canonical
// domain.OrderStatus (spec.md §6.3).
var storefrontOrderStatus = map[string]domain.OrderStatus{
	"awaiting_payment": domain.OrderStatusPending,
	"paid":              domain.OrderStatusProcessing,
	"fulfilling":        domain.OrderStatusProcessing,
	"on_hold":           domain.OrderStatusOnHold,
	"shipped":           domain.OrderStatusDelivered,
	"cancelled":         domain.OrderStatusCancelled,
}

// Storefront talks to the Storefront Commerce platform: cursor-based
// pagination, `<resource>/<action>` webhook topics (see internal/webhook).
type Storefront struct {
	base baseClient
}

// NewStorefront builds a Storefront client.
func NewStorefront(baseURL, apiKey, apiSecret string) *Storefront {
	return &Storefront{base: newBaseClient(baseURL, apiKey, apiSecret)}
}

type storefrontOrderDTO struct {
	ID              string  `json:"id"`
	OrderNumber     string  `json:"orderNumber"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"paymentStatus"`
	Total           float64 `json:"total"`
	Currency        string  `json:"currency"`
	UpdatedAt       string  `json:"updatedAt"`
	Lines           []struct {
		SKU       string  `json:"sku"`
		Name      string  `json:"name"`
		Quantity  int     `json:"quantity"`
		UnitPrice float64 `json:"unitPrice"`
	} `json:"lines"`
}

type storefrontOrderPage struct {
	Items      []storefrontOrderDTO `json:"items"`
	NextCursor string               `json:"nextCursor"`
}

// ListOrdersSince returns orders updated since cursor, re-including the
// last overlapWindow to cover updates that land exactly at the boundary.
func (s *Storefront) ListOrdersSince(ctx context.Context, cursor string) ([]domain.Order, string, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
		q.Set("overlapSeconds", fmt.Sprintf("%d", int(overlapWindow.Seconds())))
	}
	var page storefrontOrderPage
	path := "/api/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	if err := s.base.getJSON(ctx, path, &page); err != nil {
		return nil, "", err
	}

	out := make([]domain.Order, 0, len(page.Items))
	for _, dto := range page.Items {
		out = append(out, storefrontOrderToDomain(dto))
	}
	return out, page.NextCursor, nil
}

// GetOrder fetches a single order by external id.
func (s *Storefront) GetOrder(ctx context.Context, externalOrderID string) (domain.Order, error) {
	var dto storefrontOrderDTO
	if err := s.base.getJSON(ctx, "/api/orders/"+url.PathEscape(externalOrderID), &dto); err != nil {
		return domain.Order{}, err
	}
	return storefrontOrderToDomain(dto), nil
}

type storefrontProductDTO struct {
	ID          string  `json:"id"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl"`
}

// ListProductsSince returns products updated since cursor.
func (s *Storefront) ListProductsSince(ctx context.Context, cursor string) ([]domain.Product, string, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page struct {
		Items      []storefrontProductDTO `json:"items"`
		NextCursor string                 `json:"nextCursor"`
	}
	path := "/api/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	if err := s.base.getJSON(ctx, path, &page); err != nil {
		return nil, "", err
	}

	out := make([]domain.Product, 0, len(page.Items))
	for _, dto := range page.Items {
		out = append(out, domain.Product{SKU: dto.SKU, Name: dto.Name, Description: dto.Description, UnitPrice: dto.Price, ImageURL: dto.ImageURL})
	}
	return out, page.NextCursor, nil
}

// GetProduct fetches a single product by external id.
func (s *Storefront) GetProduct(ctx context.Context, externalProductID string) (domain.Product, error) {
	var dto storefrontProductDTO
	if err := s.base.getJSON(ctx, "/api/products/"+url.PathEscape(externalProductID), &dto); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{SKU: dto.SKU, Name: dto.Name, Description: dto.Description, UnitPrice: dto.Price, ImageURL: dto.ImageURL}, nil
}

// UpdateOrderStatus pushes a status change to Storefront.
func (s *Storefront) UpdateOrderStatus(ctx context.Context, externalOrderID string, update OrderUpdate) error {
	return s.base.mutateJSON(ctx, "PATCH", "/api/orders/"+url.PathEscape(externalOrderID)+"/status", update)
}

// CreateFulfillment reports a fulfillment event to Storefront.
func (s *Storefront) CreateFulfillment(ctx context.Context, externalOrderID string, update OrderUpdate) error {
	return s.base.mutateJSON(ctx, "POST", "/api/orders/"+url.PathEscape(externalOrderID)+"/fulfillments", update)
}

// UpdateTracking pushes tracking details to Storefront.
func (s *Storefront) UpdateTracking(ctx context.Context, externalOrderID string, update OrderUpdate) error {
	return s.base.mutateJSON(ctx, "PATCH", "/api/orders/"+url.PathEscape(externalOrderID)+"/tracking", update)
}

// CancelOrder cancels an order on Storefront.
func (s *Storefront) CancelOrder(ctx context.Context, externalOrderID, reason string) error {
	return s.base.mutateJSON(ctx, "POST", "/api/orders/"+url.PathEscape(externalOrderID)+"/cancel",
		OrderUpdate{Reason: reason})
}

func storefrontOrderToDomain(dto storefrontOrderDTO) domain.Order {
	status, ok := storefrontOrderStatus[dto.Status]
	if !ok {
		status = domain.OrderStatusPending
	}
	updatedAt, _ := time.Parse(time.RFC3339, dto.UpdatedAt)

	items := make([]domain.OrderItem, 0, len(dto.Lines))
	for _, l := range dto.Lines {
		items = append(items, domain.OrderItem{
			SKU: l.SKU, ProductName: l.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice,
			LineTotal: float64(l.Quantity) * l.UnitPrice,
		})
	}

	return domain.Order{
		ExternalOrderID: dto.ID,
		OrderNumber:     dto.OrderNumber,
		OrderOrigin:     domain.OriginStorefront,
		Status:          status,
		PaymentStatus:   domain.PaymentStatus(dto.PaymentStatus),
		Total:           dto.Total,
		Currency:        dto.Currency,
		Items:           items,
		UpdatedAt:       updatedAt,
	}
}
