// Package domain holds the canonical entities the sync engine reads and
// writes. These types describe the projection the engine owns; they are
// not wire DTOs for any specific Commerce or FFN payload shape.
package domain

import "time"

// ChannelType tags which Commerce variant a Channel talks to.
type ChannelType string

const (
	ChannelStorefront ChannelType = "storefront"
	ChannelWebshop    ChannelType = "webshop"
)

// Environment is the FFN environment tag.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// OrderOrigin records which platform an order came from.
type OrderOrigin string

const (
	OriginStorefront OrderOrigin = "storefront"
	OriginWebshop    OrderOrigin = "webshop"
	OriginInternal   OrderOrigin = "internal"
)

// OrderStatus is the commerce-visible lifecycle axis.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusOnHold     OrderStatus = "ON_HOLD"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// FulfillmentState is the warehouse-progress axis (spec.md §4.8).
type FulfillmentState string

const (
	FulfillmentPending            FulfillmentState = "PENDING"
	FulfillmentPreparation        FulfillmentState = "PREPARATION"
	FulfillmentAcknowledged       FulfillmentState = "ACKNOWLEDGED"
	FulfillmentLocked             FulfillmentState = "LOCKED"
	FulfillmentPickProcess        FulfillmentState = "PICKPROCESS"
	FulfillmentPartiallyShipped   FulfillmentState = "PARTIALLY_SHIPPED"
	FulfillmentShipped            FulfillmentState = "SHIPPED"
	FulfillmentInTransit          FulfillmentState = "IN_TRANSIT"
	FulfillmentDelivered          FulfillmentState = "DELIVERED"
	FulfillmentFailedDelivery     FulfillmentState = "FAILED_DELIVERY"
	FulfillmentReturnedToSender   FulfillmentState = "RETURNED_TO_SENDER"
	FulfillmentCanceled           FulfillmentState = "CANCELED"
	FulfillmentPartiallyCanceled  FulfillmentState = "PARTIALLY_CANCELED"
)

// IsTerminal reports whether the state is a sink per spec.md §4.8/§8 (TP6).
func (s FulfillmentState) IsTerminal() bool {
	switch s {
	case FulfillmentDelivered, FulfillmentFailedDelivery, FulfillmentReturnedToSender, FulfillmentCanceled:
		return true
	default:
		return false
	}
}

// HoldReason enumerates why an order is on hold.
type HoldReason string

const (
	HoldAwaitingPayment         HoldReason = "AWAITING_PAYMENT"
	HoldShippingMethodMismatch  HoldReason = "SHIPPING_METHOD_MISMATCH"
	HoldFraudReview             HoldReason = "FRAUD_REVIEW"
	HoldManual                  HoldReason = "MANUAL"
)

// PaymentStatus is modeled as a string with a safety predicate rather than
// a closed enum, matching the source's free-form token (spec.md Open
// Questions #3): any literal outside the safe set is "unsafe".
type PaymentStatus string

var safePaymentStatuses = map[PaymentStatus]bool{
	"paid":               true,
	"completed":          true,
	"processing":         true,
	"refunded":           true,
	"partially_refunded": true,
	"authorized":         true,
	"partially_paid":     true,
}

// IsSafe reports whether the status is in the FFN-dispatch safe set
// (spec.md §6.3).
func (p PaymentStatus) IsSafe() bool {
	return safePaymentStatuses[p]
}

// SyncStatus tracks the last sync attempt outcome for an order or product.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncError   SyncStatus = "ERROR"
)

// Tenant is a merchant account.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Channel binds a tenant to one Commerce endpoint.
type Channel struct {
	ID                string
	TenantID          string
	Type              ChannelType
	BaseURL           string
	EncryptedAPIKey   string
	EncryptedAPISecret string
	IsActive          bool
	SyncEnabled       bool
	LastOrderPollAt   *time.Time
	LastProductPollAt *time.Time
	TokenRevoked      bool
}

// FFNConfig is the tenant's single FFN configuration.
type FFNConfig struct {
	TenantID               string
	ClientID                string
	EncryptedClientSecret   string
	EncryptedAccessToken    string
	EncryptedRefreshToken   string
	TokenExpiresAt          time.Time
	Environment             Environment
	FulfillerID             string
	WarehouseID             string
	IsActive                bool
}

// Product is the canonical item.
type Product struct {
	ID              string
	TenantID        string
	SKU             string
	Name            string
	Description     string
	UnitPrice       float64
	Weight          float64
	AvailableStock  int
	ReservedStock   int
	FFNProductID    *string
	SyncStatus      SyncStatus
	ImageURL        string
	IsBundle        bool
}

// ProductChannel links a Product to a Channel with the channel-local id.
type ProductChannel struct {
	ProductID         string
	ChannelID         string
	ExternalProductID string
}

// OrderItem is a line item snapshot on an Order.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   *string
	SKU         string
	ProductName string
	Quantity    int
	UnitPrice   float64
	LineTotal   float64
}

// Order is the central aggregate (spec.md §3).
type Order struct {
	ID                    string
	TenantID              string
	ChannelID             string
	OrderNumber           string
	ExternalOrderID       string
	OrderOrigin           OrderOrigin
	Status                OrderStatus
	FulfillmentState      FulfillmentState
	PaymentStatus         PaymentStatus
	IsOnHold              bool
	HoldReason            *HoldReason
	HoldPlacedAt          *time.Time
	HoldPlacedBy          string
	HoldReleasedAt        *time.Time
	HoldReleasedBy        string
	PaymentHoldOverride   bool
	ShippingAddress       Address
	BillingAddress        Address
	Total                 float64
	Currency              string
	Items                 []OrderItem
	FFNOutboundID         *string
	LastFFNSyncAt         *time.Time
	FFNSyncError          string
	CommerceSyncError     string
	LastSyncedToCommerce  *time.Time
	SyncStatus            SyncStatus
	ShippedAt             *time.Time
	DeliveredAt           *time.Time
	TrackingNumber        string
	TrackingURL           string
	Carrier               string
	Packages              []TrackingPackage
	PriorityLevel         int
	IsCancelled           bool
	CancelledAt           *time.Time
	CancelledBy           string
	CancellationReason    string
	IsReplacement         bool
	LastOperationalUpdateBy string
	LastOperationalUpdateAt *time.Time
	AwakeableRef          string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TrackingPackage is one captured parcel's tracking detail. Multi-parcel
// orders persist one entry per package instead of only the first, so all
// packages remain reachable (spec.md §4.8 "capture all packages; expose
// via getAllTrackingInfo").
type TrackingPackage struct {
	TrackingNumber        string
	Carrier               string
	TrackingURL           string
	EstimatedDeliveryDate string
}

// Address is embedded shipping/billing snapshot data.
type Address struct {
	FirstName string
	LastName  string
	Company   string
	Street    string
	Addition  string
	City      string
	Zip       string
	Country   string
	Phone     string
	Email     string
}

// SyncLogAction enumerates OrderSyncLog action kinds.
type SyncLogAction string

const (
	ActionCreate                      SyncLogAction = "create"
	ActionUpdate                      SyncLogAction = "update"
	ActionCancel                      SyncLogAction = "cancel"
	ActionHold                        SyncLogAction = "hold"
	ActionReleaseHold                 SyncLogAction = "release_hold"
	ActionUpdateTracking              SyncLogAction = "update_tracking"
	ActionFulfill                     SyncLogAction = "fulfill"
	ActionPaymentHoldManuallyReleased SyncLogAction = "payment_hold_manually_released"
)

// SyncOrigin enumerates who triggered an OrderSyncLog entry.
type SyncOrigin string

const (
	OriginOfInternal  SyncOrigin = "Internal"
	OriginOfStorefront SyncOrigin = "Storefront"
	OriginOfWebshop   SyncOrigin = "Webshop"
	OriginOfFFN       SyncOrigin = "FFN"
)

// OrderSyncLog is the immutable audit trail (spec.md §3).
type OrderSyncLog struct {
	ID             string
	OrderID        string
	Action         SyncLogAction
	Origin         SyncOrigin
	TargetPlatform string
	Success        bool
	ErrorMessage   string
	ExternalID     string
	ChangedFields  []string
	PreviousState  string
	CreatedAt      time.Time
}

// ReturnStatus enumerates Return lifecycle states.
type ReturnStatus string

const (
	ReturnReceived  ReturnStatus = "RECEIVED"
	ReturnInspected ReturnStatus = "INSPECTED"
	ReturnAccepted  ReturnStatus = "ACCEPTED"
	ReturnRefunded  ReturnStatus = "REFUNDED"
)

// Return is a tenant-scoped return tied to an order.
type Return struct {
	ID          string
	TenantID    string
	OrderID     string
	Status      ReturnStatus
	Reason      string
	FFNReturnID string
	Items       []ReturnItem
	CreatedAt   time.Time
}

// ReturnItem is a line item on a Return.
type ReturnItem struct {
	ID       string
	ReturnID string
	SKU      string
	Quantity int
}

// CronJobStatus captures the last-run outcome for a (tenant, job) pair.
type CronJobStatus struct {
	TenantID  string
	JobName   string
	LastRunAt time.Time
	Success   bool
	Duration  time.Duration
	Details   map[string]any
	Error     string
}
