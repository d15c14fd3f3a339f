package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/infrastructure/persistence/tenant"
)

// GormOrderRepository implements commerce.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByExternalID finds an order by its upstream identity
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*commerce.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("external_id = ?", externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts the order or overwrites its scalar fields and customer. The
// stored order_date is kept when the incoming order has no upstream date.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *commerce.Order) (*commerce.Order, bool, error) {
	model := models.OrderModelFromDomain(order)
	model.UpdatedAt = time.Now()
	columns := []string{"order_number", "total_price", "customer_id", "updated_at"}
	if order.OrderDateKnown {
		columns = append(columns, "order_date")
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}, {Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(model).Error; err != nil {
		return nil, false, err
	}

	stored, err := r.FindByExternalID(ctx, order.TenantID, order.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.ID == order.ID, nil
}

// UpsertItem inserts the line item or overwrites product, quantity and price
func (r *GormOrderRepository) UpsertItem(ctx context.Context, item *commerce.OrderItem) error {
	model := models.OrderItemModelFromDomain(item)
	model.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "external_line_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_id", "quantity", "price", "updated_at"}),
		}).
		Create(model).Error
}

// CountByTenant counts orders of a tenant
func (r *GormOrderRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Scopes(tenant.Scope(tenantID)).
		Count(&count).Error
	return count, err
}

var _ commerce.OrderRepository = (*GormOrderRepository)(nil)
