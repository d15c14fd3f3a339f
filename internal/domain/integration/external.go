package integration

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalCustomer is an upstream customer. TotalSpent and OrdersCount are the
// platform's own aggregates and are only trusted from the customer listing.
type ExternalCustomer struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	TotalSpent  decimal.Decimal
	OrdersCount int

	// SnapshotAt is when the aggregates were read upstream. Zero when unknown.
	SnapshotAt time.Time
}

// ExternalProduct is an upstream product with its representative price
type ExternalProduct struct {
	ID    string
	Title string
	Price decimal.Decimal
}

// ExternalLineItem is one line of an upstream order.
// ProductID is empty for custom items that reference no product.
type ExternalLineItem struct {
	ID        string
	ProductID string
	Title     string
	Quantity  int
	Price     decimal.Decimal
}

// HasProduct reports whether the line references an upstream product
func (l ExternalLineItem) HasProduct() bool {
	return l.ProductID != ""
}

// ExternalOrder is an upstream order with its embedded customer
type ExternalOrder struct {
	ID          string
	OrderNumber string
	TotalPrice  decimal.Decimal
	// CreatedAt is zero when upstream omitted it
	CreatedAt time.Time
	Customer  *ExternalCustomer
	LineItems []ExternalLineItem
}

// HasCustomer reports whether the order carries a usable customer reference
func (o *ExternalOrder) HasCustomer() bool {
	return o.Customer != nil && o.Customer.ID != ""
}

// ExternalCart is an upstream cart as delivered by carts/update
type ExternalCart struct {
	ID                   string
	AbandonedCheckoutURL string
	Customer             *ExternalCustomer
	Raw                  json.RawMessage
}

// IsAbandoned reports whether the cart carries an abandoned checkout URL
func (c *ExternalCart) IsAbandoned() bool {
	return c.AbandonedCheckoutURL != ""
}
