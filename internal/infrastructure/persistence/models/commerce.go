package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/shared"
)

// TenantScopedModel adds the owning tenant to BaseModel
type TenantScopedModel struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

func (m *TenantScopedModel) fromDomain(e shared.TenantEntity) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.TenantID = e.TenantID
}

func (m *TenantScopedModel) toDomain() shared.TenantEntity {
	return shared.TenantEntity{BaseEntity: m.ToDomain(), TenantID: m.TenantID}
}

// ---------------------------------------------------------------------------
// Tenant
// ---------------------------------------------------------------------------

// TenantModel is the persistence model for a connected store
type TenantModel struct {
	BaseModel
	Name        string  `gorm:"size:200;not null"`
	ShopDomain  string  `gorm:"size:255;not null"`
	AccessToken *string `gorm:"size:255"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the model to a domain Tenant
func (m *TenantModel) ToDomain() *commerce.Tenant {
	t := &commerce.Tenant{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		ShopDomain: m.ShopDomain,
	}
	if m.AccessToken != nil {
		t.AccessToken = *m.AccessToken
	}
	return t
}

// TenantModelFromDomain converts a domain Tenant to a model
func TenantModelFromDomain(t *commerce.Tenant) *TenantModel {
	m := &TenantModel{Name: t.Name, ShopDomain: t.ShopDomain}
	m.FromDomainBaseEntity(t.BaseEntity)
	if t.AccessToken != "" {
		token := t.AccessToken
		m.AccessToken = &token
	}
	return m
}

// ---------------------------------------------------------------------------
// Customer
// ---------------------------------------------------------------------------

// CustomerModel is the persistence model for a customer.
// (external_id, tenant_id) is unique.
type CustomerModel struct {
	BaseModel
	TenantID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_customers_external_tenant,priority:2"`
	ExternalID         string          `gorm:"size:64;not null;uniqueIndex:uq_customers_external_tenant,priority:1"`
	Email              string          `gorm:"size:320"`
	FirstName          string          `gorm:"size:200"`
	LastName           string          `gorm:"size:200"`
	TotalSpent         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	OrdersCount        int             `gorm:"not null;default:0"`
	AggregatesSyncedAt *time.Time
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the model to a domain Customer
func (m *CustomerModel) ToDomain() *commerce.Customer {
	return &commerce.Customer{
		TenantEntity: shared.TenantEntity{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
		},
		ExternalID:         m.ExternalID,
		Email:              m.Email,
		FirstName:          m.FirstName,
		LastName:           m.LastName,
		TotalSpent:         m.TotalSpent,
		OrdersCount:        m.OrdersCount,
		AggregatesSyncedAt: m.AggregatesSyncedAt,
	}
}

// CustomerModelFromDomain converts a domain Customer to a model
func CustomerModelFromDomain(c *commerce.Customer) *CustomerModel {
	m := &CustomerModel{
		TenantID:           c.TenantID,
		ExternalID:         c.ExternalID,
		Email:              c.Email,
		FirstName:          c.FirstName,
		LastName:           c.LastName,
		TotalSpent:         c.TotalSpent,
		OrdersCount:        c.OrdersCount,
		AggregatesSyncedAt: c.AggregatesSyncedAt,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// ---------------------------------------------------------------------------
// Product
// ---------------------------------------------------------------------------

// ProductModel is the persistence model for a product.
// (external_id, tenant_id) is unique.
type ProductModel struct {
	BaseModel
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_products_external_tenant,priority:2"`
	ExternalID string          `gorm:"size:64;not null;uniqueIndex:uq_products_external_tenant,priority:1"`
	Title      string          `gorm:"size:500"`
	Price      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the model to a domain Product
func (m *ProductModel) ToDomain() *commerce.Product {
	return &commerce.Product{
		TenantEntity: shared.TenantEntity{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
		},
		ExternalID: m.ExternalID,
		Title:      m.Title,
		Price:      m.Price,
	}
}

// ProductModelFromDomain converts a domain Product to a model
func ProductModelFromDomain(p *commerce.Product) *ProductModel {
	m := &ProductModel{
		TenantID:   p.TenantID,
		ExternalID: p.ExternalID,
		Title:      p.Title,
		Price:      p.Price,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// OrderModel is the persistence model for an order.
// (external_id, tenant_id) is unique.
type OrderModel struct {
	BaseModel
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_orders_external_tenant,priority:2"`
	ExternalID  string          `gorm:"size:64;not null;uniqueIndex:uq_orders_external_tenant,priority:1"`
	OrderNumber string          `gorm:"size:64"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	OrderDate   time.Time       `gorm:"not null"`
	CustomerID  uuid.UUID       `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model to a domain Order (without items)
func (m *OrderModel) ToDomain() *commerce.Order {
	return &commerce.Order{
		TenantEntity: shared.TenantEntity{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
		},
		ExternalID:  m.ExternalID,
		OrderNumber: m.OrderNumber,
		TotalPrice:  m.TotalPrice,
		OrderDate:   m.OrderDate,
		CustomerID:  m.CustomerID,
	}
}

// OrderModelFromDomain converts a domain Order to a model
func OrderModelFromDomain(o *commerce.Order) *OrderModel {
	m := &OrderModel{
		TenantID:    o.TenantID,
		ExternalID:  o.ExternalID,
		OrderNumber: o.OrderNumber,
		TotalPrice:  o.TotalPrice,
		OrderDate:   o.OrderDate,
		CustomerID:  o.CustomerID,
	}
	m.FromDomainBaseEntity(o.BaseEntity)
	return m
}

// OrderItemModel is the persistence model for an order line.
// (order_id, external_line_item_id) is unique.
type OrderItemModel struct {
	TenantScopedModel
	OrderID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_order_items_order_line,priority:1"`
	ExternalLineItemID string          `gorm:"size:64;not null;uniqueIndex:uq_order_items_order_line,priority:2"`
	ProductID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity           int             `gorm:"not null;default:0"`
	Price              decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderItemModelFromDomain converts a domain OrderItem to a model
func OrderItemModelFromDomain(i *commerce.OrderItem) *OrderItemModel {
	m := &OrderItemModel{
		OrderID:            i.OrderID,
		ExternalLineItemID: i.ExternalLineItemID,
		ProductID:          i.ProductID,
		Quantity:           i.Quantity,
		Price:              i.Price,
	}
	m.fromDomain(i.TenantEntity)
	return m
}

// ---------------------------------------------------------------------------
// Aggregate applications (applied markers)
// ---------------------------------------------------------------------------

// CustomerAggregateApplicationModel records that an order has been applied to
// its customer's aggregates. The composite primary key is the guard.
type CustomerAggregateApplicationModel struct {
	TenantID   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Counted    bool            `gorm:"not null"`
	AppliedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerAggregateApplicationModel) TableName() string {
	return "customer_aggregate_applications"
}

// CustomerAggregateApplicationModelFromDomain converts a marker to a model
func CustomerAggregateApplicationModelFromDomain(a *commerce.AggregateApplication) *CustomerAggregateApplicationModel {
	return &CustomerAggregateApplicationModel{
		TenantID:   a.TenantID,
		OrderID:    a.OrderID,
		CustomerID: a.CustomerID,
		Amount:     a.Amount,
		Counted:    a.Counted,
		AppliedAt:  a.AppliedAt,
	}
}

// ---------------------------------------------------------------------------
// Event
// ---------------------------------------------------------------------------

// EventModel is the persistence model for an append-only event
type EventModel struct {
	TenantScopedModel
	CustomerID *uuid.UUID `gorm:"type:uuid;index"`
	Type       string     `gorm:"size:50;not null;index"`
	Data       string     `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (EventModel) TableName() string {
	return "events"
}

// ToDomain converts the model to a domain Event
func (m *EventModel) ToDomain() commerce.Event {
	return commerce.Event{
		TenantEntity: m.toDomain(),
		CustomerID:   m.CustomerID,
		Type:         commerce.EventType(m.Type),
		Data:         json.RawMessage(m.Data),
	}
}

// EventModelFromDomain converts a domain Event to a model
func EventModelFromDomain(e *commerce.Event) *EventModel {
	m := &EventModel{
		CustomerID: e.CustomerID,
		Type:       string(e.Type),
		Data:       string(e.Data),
	}
	m.fromDomain(e.TenantEntity)
	return m
}

// ---------------------------------------------------------------------------
// Webhook registration
// ---------------------------------------------------------------------------

// WebhookRegistrationModel is the persistence model for an upstream webhook
// subscription. (topic, tenant_id) is unique.
type WebhookRegistrationModel struct {
	BaseModel
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_webhooks_topic_tenant,priority:2"`
	Topic      string    `gorm:"size:100;not null;uniqueIndex:uq_webhooks_topic_tenant,priority:1"`
	Address    string    `gorm:"size:1000;not null"`
	ExternalID string    `gorm:"size:64"`
}

// TableName returns the table name for GORM
func (WebhookRegistrationModel) TableName() string {
	return "webhook_registrations"
}

// ToDomain converts the model to a domain WebhookRegistration
func (m *WebhookRegistrationModel) ToDomain() *commerce.WebhookRegistration {
	return &commerce.WebhookRegistration{
		TenantEntity: shared.TenantEntity{
			BaseEntity: m.BaseModel.ToDomain(),
			TenantID:   m.TenantID,
		},
		Topic:      commerce.Topic(m.Topic),
		Address:    m.Address,
		ExternalID: m.ExternalID,
	}
}

// WebhookRegistrationModelFromDomain converts a registration to a model
func WebhookRegistrationModelFromDomain(w *commerce.WebhookRegistration) *WebhookRegistrationModel {
	m := &WebhookRegistrationModel{
		TenantID:   w.TenantID,
		Topic:      string(w.Topic),
		Address:    w.Address,
		ExternalID: w.ExternalID,
	}
	m.FromDomainBaseEntity(w.BaseEntity)
	return m
}

// AllModels lists every model, in dependency order, for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&TenantModel{},
		&CustomerModel{},
		&ProductModel{},
		&OrderModel{},
		&OrderItemModel{},
		&CustomerAggregateApplicationModel{},
		&EventModel{},
		&WebhookRegistrationModel{},
	}
}
