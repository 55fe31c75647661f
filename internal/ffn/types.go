package ffn

// OutboundPayload is the wire shape createOutbound/updateOutbound send.
type OutboundPayload struct {
	MerchantOrderNumber string              `json:"merchantOrderNumber"`
	WarehouseID         string              `json:"warehouseId"`
	ShippingAddress     AddressPayload      `json:"shippingAddress"`
	Lines               []OutboundLine      `json:"lines"`
	ShippingMethod      string              `json:"shippingMethod,omitempty"`
	Reference           string              `json:"reference,omitempty"`
	// AutoCompleteBillOfMaterials is set when any line's product is a
	// bundle, so FFN expands it into its component SKUs on receipt.
	AutoCompleteBillOfMaterials bool `json:"autoCompleteBillOfMaterials,omitempty"`
}

type AddressPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company,omitempty"`
	Street    string `json:"street"`
	Addition  string `json:"addition,omitempty"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
}

type OutboundLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Outbound is the response shape for outbound reads.
type Outbound struct {
	ID                   string `json:"id"`
	MerchantOrderNumber  string `json:"merchantOrderNumber"`
	Status               string `json:"status"`
	TrackingNumber       string `json:"trackingNumber"`
	TrackingURL          string `json:"trackingUrl"`
	Carrier              string `json:"carrier"`
	CancellationDetail   string `json:"cancellationDetail,omitempty"`
}

// OutboundPage is a paginated listing response.
type OutboundPage struct {
	Items      []Outbound `json:"items"`
	NextCursor string     `json:"nextCursor"`
}

// ShippingIdentifier is one {type, value, name} tuple in a shipping
// package's identifiers array. The first entry of Type "TrackingId" is the
// carrier-assigned tracking number.
type ShippingIdentifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

// ShippingPackage is one parcel record returned by
// getShippingNotifications(outboundId); multi-package orders return one
// record per parcel, in shipment order.
type ShippingPackage struct {
	FreightOption         string               `json:"freightOption"`
	EstimatedDeliveryDate string               `json:"estimatedDeliveryDate,omitempty"`
	TrackingURL           string               `json:"trackingUrl,omitempty"`
	ShippedAt             string               `json:"shippedAt,omitempty"`
	Identifiers           []ShippingIdentifier `json:"identifiers"`
}

// TrackingID returns the value of the package's first "TrackingId"
// identifier, or "" if none is present.
func (p ShippingPackage) TrackingID() string {
	for _, id := range p.Identifiers {
		if id.Type == "TrackingId" {
			return id.Value
		}
	}
	return ""
}

// ProductPayload is the wire shape createProduct/updateProduct send.
type ProductPayload struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

// Product is the response shape for product reads, including stock.
type Product struct {
	ID             string `json:"id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	AvailableStock int    `json:"availableStock"`
	ReservedStock  int    `json:"reservedStock"`
}

// ProductPage is a paginated product listing response.
type ProductPage struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"nextCursor"`
}

// InboundPayload is the wire shape createInbound sends.
type InboundPayload struct {
	WarehouseID string         `json:"warehouseId"`
	Reference   string         `json:"reference"`
	Lines       []OutboundLine `json:"lines"`
}

// Inbound is the response shape for inbound reads.
type Inbound struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ReturnPayload is the wire shape createReturn/updateReturn send.
type ReturnPayload struct {
	OutboundID string         `json:"outboundId"`
	Reason     string         `json:"reason"`
	Lines      []OutboundLine `json:"lines"`
}

// Return is the response shape for return reads.
type Return struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Fulfiller, Warehouse, ShippingMethod back the reference-data endpoints.
type Fulfiller struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ShippingMethod struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
