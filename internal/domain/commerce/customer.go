package commerce

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/shared"
)

// CustomerUpsertMode selects which fields a customer upsert may overwrite
type CustomerUpsertMode int

const (
	// CustomerModeIdentity overwrites identity fields only (email, names).
	// Used by webhooks and stub creation; aggregates are never touched.
	CustomerModeIdentity CustomerUpsertMode = iota

	// CustomerModeFull also overwrites the aggregates with the upstream snapshot.
	// Used by the customer listing sync.
	CustomerModeFull
)

// String returns the mode name for logs
func (m CustomerUpsertMode) String() string {
	if m == CustomerModeFull {
		return "full"
	}
	return "identity"
}

// Customer is the local projection of an upstream customer.
// TotalSpent and OrdersCount never decrease through order reconciliation.
type Customer struct {
	shared.TenantEntity
	ExternalID  string
	Email       string
	FirstName   string
	LastName    string
	TotalSpent  decimal.Decimal
	OrdersCount int

	// AggregatesSyncedAt is when the aggregates were last overwritten from an
	// upstream snapshot. Nil for customers that were only ever stub-created.
	AggregatesSyncedAt *time.Time
}

// NewCustomer creates a customer with zero aggregates
func NewCustomer(tenantID uuid.UUID, externalID string) (*Customer, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrMissingExternalID
	}
	return &Customer{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ExternalID:   externalID,
		TotalSpent:   decimal.Zero,
	}, nil
}

// SetIdentity overwrites the upstream-owned identity fields
func (c *Customer) SetIdentity(email, firstName, lastName string) {
	c.Email = email
	c.FirstName = firstName
	c.LastName = lastName
}

// OverwriteAggregates replaces the aggregates with an upstream snapshot taken at
// the given time.
func (c *Customer) OverwriteAggregates(totalSpent decimal.Decimal, ordersCount int, at time.Time) {
	if totalSpent.IsNegative() {
		totalSpent = decimal.Zero
	}
	if ordersCount < 0 {
		ordersCount = 0
	}
	c.TotalSpent = totalSpent
	c.OrdersCount = ordersCount
	synced := at.UTC()
	c.AggregatesSyncedAt = &synced
}

// CountsOrderPlacedAt reports whether an order placed at the given time must be
// added to the aggregates. Orders placed before the last upstream snapshot are
// already included in it.
func (c *Customer) CountsOrderPlacedAt(orderDate time.Time) bool {
	if c.AggregatesSyncedAt == nil {
		return true
	}
	return orderDate.After(*c.AggregatesSyncedAt)
}
