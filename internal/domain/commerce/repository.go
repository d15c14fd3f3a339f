package commerce

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// TenantRepository reads tenants. Tenant lifecycle is managed elsewhere.
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	// FindWithCredentials returns tenants whose access token is set
	FindWithCredentials(ctx context.Context) ([]Tenant, error)
	Save(ctx context.Context, tenant *Tenant) error
}

// CustomerRepository persists customers keyed by (ExternalID, TenantID)
type CustomerRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*Customer, error)

	// Upsert inserts the customer or overwrites the fields selected by mode.
	// It returns the stored row and whether it was inserted.
	Upsert(ctx context.Context, customer *Customer, mode CustomerUpsertMode) (*Customer, bool, error)

	// CreateIfAbsent inserts the customer unless one already exists for its key,
	// and returns the stored row either way.
	CreateIfAbsent(ctx context.Context, customer *Customer) (*Customer, bool, error)

	// IncrementAggregates adds amount to total_spent and one to orders_count
	// unless the stored upstream snapshot was taken at or after placedAt. It
	// reports whether the aggregates changed.
	IncrementAggregates(ctx context.Context, tenantID, customerID uuid.UUID, amount decimal.Decimal, placedAt time.Time) (bool, error)

	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ProductRepository persists products keyed by (ExternalID, TenantID)
type ProductRepository interface {
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*Product, error)
	Upsert(ctx context.Context, product *Product) (*Product, bool, error)
	CreateIfAbsent(ctx context.Context, product *Product) (*Product, bool, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// OrderRepository persists orders keyed by (ExternalID, TenantID) and their
// items keyed by (OrderID, ExternalLineItemID).
type OrderRepository interface {
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*Order, error)
	Upsert(ctx context.Context, order *Order) (*Order, bool, error)
	UpsertItem(ctx context.Context, item *OrderItem) error
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// AggregateLedger stores applied markers for customer aggregates
type AggregateLedger interface {
	// MarkApplied inserts the marker for (TenantID, OrderID). It returns false
	// without error when a marker already exists.
	MarkApplied(ctx context.Context, application *AggregateApplication) (bool, error)
	// MarkUncounted records that an applied order did not change the aggregates
	MarkUncounted(ctx context.Context, tenantID, orderID uuid.UUID) error
}

// EventRepository appends events
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	FindByTenant(ctx context.Context, tenantID uuid.UUID, eventType EventType) ([]Event, error)
}

// WebhookRegistrationRepository persists registrations keyed by (Topic, TenantID)
type WebhookRegistrationRepository interface {
	Upsert(ctx context.Context, registration *WebhookRegistration) (*WebhookRegistration, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]WebhookRegistration, error)
}
