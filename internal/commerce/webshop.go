package commerce

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shipbridge/sync-engine/internal/domain"
)

// webshopOrderStatus maps Webshop's wire status to our canonical
// domain.OrderStatus (spec.md §6.3).
var webshopOrderStatus = map[string]domain.OrderStatus{
	"new":        domain.OrderStatusPending,
	"processing": domain.OrderStatusProcessing,
	"held":       domain.OrderStatusOnHold,
	"complete":   domain.OrderStatusDelivered,
	"canceled":   domain.OrderStatusCancelled,
}

// Webshop talks to the Webshop Commerce platform: offset-based pagination
// (unlike Storefront's cursor), `<resource>-<action>` webhook topics.
type Webshop struct {
	base     baseClient
	pageSize int
}

// NewWebshop builds a Webshop client.
func NewWebshop(baseURL, apiKey, apiSecret string) *Webshop {
	return &Webshop{base: newBaseClient(baseURL, apiKey, apiSecret), pageSize: 100}
}

type webshopOrderDTO struct {
	OrderID       string  `json:"order_id"`
	IncrementID   string  `json:"increment_id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	GrandTotal    float64 `json:"grand_total"`
	CurrencyCode  string  `json:"currency_code"`
	UpdatedAt     string  `json:"updated_at"`
	Items         []struct {
		SKU      string  `json:"sku"`
		Name     string  `json:"name"`
		Qty      int     `json:"qty_ordered"`
		Price    float64 `json:"price"`
	} `json:"items"`
}

// offsetFromCursor decodes our opaque cursor (plain offset encoded as a
// decimal string) back into an int, so ListOrdersSince/ListProductsSince
// share the same cursor-shaped interface the Storefront client uses.
func offsetFromCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	n, err := strconv.Atoi(cursor)
	if err != nil {
		return 0
	}
	return n
}

// ListOrdersSince returns the page of orders at the cursor's offset. It
// applies no overlap window; orders are not re-fetched across pages.
func (w *Webshop) ListOrdersSince(ctx context.Context, cursor string) ([]domain.Order, string, error) {
	offset := offsetFromCursor(cursor)

	q := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(w.pageSize)},
	}
	var page struct {
		Items []webshopOrderDTO `json:"items"`
		Total int               `json:"total"`
	}
	if err := w.base.getJSON(ctx, "/rest/V1/orders?"+q.Encode(), &page); err != nil {
		return nil, "", err
	}

	out := make([]domain.Order, 0, len(page.Items))
	for _, dto := range page.Items {
		out = append(out, webshopOrderToDomain(dto))
	}

	nextOffset := offset + len(page.Items)
	if nextOffset >= page.Total || len(page.Items) == 0 {
		return out, "", nil
	}
	return out, strconv.Itoa(nextOffset), nil
}

// GetOrder fetches a single order by external id.
func (w *Webshop) GetOrder(ctx context.Context, externalOrderID string) (domain.Order, error) {
	var dto webshopOrderDTO
	if err := w.base.getJSON(ctx, "/rest/V1/orders/"+url.PathEscape(externalOrderID), &dto); err != nil {
		return domain.Order{}, err
	}
	return webshopOrderToDomain(dto), nil
}

type webshopProductDTO struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// ListProductsSince returns the next page of products.
func (w *Webshop) ListProductsSince(ctx context.Context, cursor string) ([]domain.Product, string, error) {
	offset := offsetFromCursor(cursor)
	q := url.Values{"offset": {strconv.Itoa(offset)}, "limit": {strconv.Itoa(w.pageSize)}}

	var page struct {
		Items []webshopProductDTO `json:"items"`
		Total int                 `json:"total"`
	}
	if err := w.base.getJSON(ctx, "/rest/V1/products?"+q.Encode(), &page); err != nil {
		return nil, "", err
	}

	out := make([]domain.Product, 0, len(page.Items))
	for _, dto := range page.Items {
		out = append(out, domain.Product{SKU: dto.SKU, Name: dto.Name, UnitPrice: dto.Price, Weight: dto.Weight, Description: dto.Description})
	}

	nextOffset := offset + len(page.Items)
	if nextOffset >= page.Total || len(page.Items) == 0 {
		return out, "", nil
	}
	return out, strconv.Itoa(nextOffset), nil
}

// GetProduct fetches a single product by external id (SKU on Webshop).
func (w *Webshop) GetProduct(ctx context.Context, externalProductID string) (domain.Product, error) {
	var dto webshopProductDTO
	if err := w.base.getJSON(ctx, "/rest/V1/products/"+url.PathEscape(externalProductID), &dto); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{SKU: dto.SKU, Name: dto.Name, UnitPrice: dto.Price, Weight: dto.Weight, Description: dto.Description}, nil
}

// UpdateOrderStatus pushes a status change to Webshop.
func (w *Webshop) UpdateOrderStatus(ctx context.Context, externalOrderID string, update OrderUpdate) error {
	return w.base.mutateJSON(ctx, "PUT", "/rest/V1/orders/"+url.PathEscape(externalOrderID)+"/status", update)
}

// CreateFulfillment reports a fulfillment (Webshop calls it a shipment) to Webshop.
func (w *Webshop) CreateFulfillment(ctx context.Context, externalOrderID string, update OrderUpdate) error {
	return w.base.mutateJSON(ctx, "POST", fmt.Sprintf("/rest/V1/order/%s/ship", url.PathEscape(externalOrderID)), update)
}

// UpdateTracking pushes tracking details to Webshop.
func (w *Webshop) UpdateTracking(ctx context.Context, externalOrderID string, update OrderUpdate) error {
	return w.base.mutateJSON(ctx, "PUT", "/rest/V1/orders/"+url.PathEscape(externalOrderID)+"/tracking", update)
}

// CancelOrder cancels an order on Webshop.
func (w *Webshop) CancelOrder(ctx context.Context, externalOrderID, reason string) error {
	return w.base.mutateJSON(ctx, "POST", "/rest/V1/orders/"+url.PathEscape(externalOrderID)+"/cancel",
		OrderUpdate{Reason: reason})
}

func webshopOrderToDomain(dto webshopOrderDTO) domain.Order {
	status, ok := webshopOrderStatus[dto.Status]
	if !ok {
		status = domain.OrderStatusPending
	}
	updatedAt, _ := time.Parse("2006-01-02 15:04:05", dto.UpdatedAt)

	items := make([]domain.OrderItem, 0, len(dto.Items))
	for _, it := range dto.Items {
		items = append(items, domain.OrderItem{
			SKU: it.SKU, ProductName: it.Name, Quantity: it.Qty, UnitPrice: it.Price,
			LineTotal: float64(it.Qty) * it.Price,
		})
	}

	return domain.Order{
		ExternalOrderID: dto.OrderID,
		OrderNumber:     dto.IncrementID,
		OrderOrigin:     domain.OriginWebshop,
		Status:          status,
		PaymentStatus:   domain.PaymentStatus(dto.PaymentStatus),
		Total:           dto.GrandTotal,
		Currency:        dto.CurrencyCode,
		Items:           items,
		UpdatedAt:       updatedAt,
	}
}
