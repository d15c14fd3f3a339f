package commerce

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/shared"
)

// Order is the local projection of an upstream order. It always references a
// customer; scalar fields are overwritten from upstream on every reconciliation.
type Order struct {
	shared.TenantEntity
	ExternalID  string
	OrderNumber string
	TotalPrice  decimal.Decimal
	OrderDate   time.Time
	// OrderDateKnown is false when upstream omitted the creation time; the
	// stored date of an existing order is then left untouched.
	OrderDateKnown bool
	CustomerID     uuid.UUID
	Items          []OrderItem
}

// NewOrder creates an order for a resolved customer
func NewOrder(tenantID uuid.UUID, externalID string, customerID uuid.UUID) (*Order, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrMissingExternalID
	}
	if customerID == uuid.Nil {
		return nil, ErrOrderWithoutCustomer
	}
	return &Order{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ExternalID:   externalID,
		CustomerID:   customerID,
		TotalPrice:   decimal.Zero,
	}, nil
}

// SetDetails overwrites the upstream-owned scalar fields. A zero orderDate
// means upstream did not send one; a new order is then dated now.
func (o *Order) SetDetails(orderNumber string, totalPrice decimal.Decimal, orderDate time.Time) {
	o.OrderNumber = orderNumber
	o.TotalPrice = totalPrice
	o.OrderDateKnown = !orderDate.IsZero()
	if o.OrderDateKnown {
		o.OrderDate = orderDate.UTC()
	} else {
		o.OrderDate = time.Now().UTC()
	}
}

// OrderItem is one line item of an order, keyed by (OrderID, ExternalLineItemID)
type OrderItem struct {
	shared.TenantEntity
	OrderID            uuid.UUID
	ExternalLineItemID string
	ProductID          uuid.UUID
	Quantity           int
	Price              decimal.Decimal
}

// NewOrderItem creates a line item
func NewOrderItem(order *Order, externalLineItemID string, productID uuid.UUID, quantity int, price decimal.Decimal) (*OrderItem, error) {
	externalLineItemID = strings.TrimSpace(externalLineItemID)
	if externalLineItemID == "" {
		return nil, ErrMissingExternalID
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &OrderItem{
		TenantEntity:       shared.NewTenantEntity(order.TenantID),
		OrderID:            order.ID,
		ExternalLineItemID: externalLineItemID,
		ProductID:          productID,
		Quantity:           quantity,
		Price:              price,
	}, nil
}

// AggregateApplication is the applied marker recording that an order's
// contribution was considered for its customer's aggregates. At most one exists
// per (TenantID, OrderID).
type AggregateApplication struct {
	TenantID   uuid.UUID
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Amount     decimal.Decimal
	// Counted is false when the order was already part of the customer's
	// upstream snapshot and only the marker was written.
	Counted   bool
	AppliedAt time.Time
}

// NewAggregateApplication builds the marker for an order and decides whether
// the order must be counted for the customer.
func NewAggregateApplication(order *Order, customer *Customer) *AggregateApplication {
	return &AggregateApplication{
		TenantID:   order.TenantID,
		OrderID:    order.ID,
		CustomerID: customer.ID,
		Amount:     order.TotalPrice,
		Counted:    customer.CountsOrderPlacedAt(order.OrderDate),
		AppliedAt:  time.Now(),
	}
}
