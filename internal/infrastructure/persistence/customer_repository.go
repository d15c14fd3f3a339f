package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/infrastructure/persistence/tenant"
)

var (
	customerKeyColumns = []clause.Column{{Name: "external_id"}, {Name: "tenant_id"}}

	customerIdentityColumns = []string{"email", "first_name", "last_name", "updated_at"}

	customerFullColumns = []string{
		"email", "first_name", "last_name",
		"total_spent", "orders_count", "aggregates_synced_at",
		"updated_at",
	}
)

// GormCustomerRepository implements commerce.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*commerce.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds a customer by its upstream identity
func (r *GormCustomerRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*commerce.Customer, error) {
	var model models.CustomerModel
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

// Upsert inserts the customer or overwrites the columns selected by mode.
// Aggregates are only written in CustomerModeFull.
func (r *GormCustomerRepository) Upsert(ctx context.Context, customer *commerce.Customer, mode commerce.CustomerUpsertMode) (*commerce.Customer, bool, error) {
	columns := customerIdentityColumns
	if mode == commerce.CustomerModeFull {
		columns = customerFullColumns
	}

	model := models.CustomerModelFromDomain(customer)
	model.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   customerKeyColumns,
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(model).Error; err != nil {
		return nil, false, err
	}

	stored, err := r.FindByExternalID(ctx, customer.TenantID, customer.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.ID == customer.ID, nil
}

// CreateIfAbsent inserts the customer unless its key already exists
func (r *GormCustomerRepository) CreateIfAbsent(ctx context.Context, customer *commerce.Customer) (*commerce.Customer, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   customerKeyColumns,
			DoNothing: true,
		}).
		Create(models.CustomerModelFromDomain(customer))
	if result.Error != nil {
		return nil, false, result.Error
	}

	stored, err := r.FindByExternalID(ctx, customer.TenantID, customer.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected == 1, nil
}

// IncrementAggregates adds amount to total_spent and one to orders_count in a
// single statement. The snapshot condition is part of the WHERE clause so a
// concurrent overwrite that commits first is re-checked by the database.
func (r *GormCustomerRepository) IncrementAggregates(ctx context.Context, tenantID, customerID uuid.UUID, amount decimal.Decimal, placedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", customerID).
		Where("aggregates_synced_at IS NULL OR aggregates_synced_at < ?", placedAt.UTC()).
		UpdateColumns(map[string]any{
			"total_spent":  gorm.Expr("total_spent + ?", amount),
			"orders_count": gorm.Expr("orders_count + 1"),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("id = ?", customerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, shared.ErrNotFound
	}
	return false, nil
}

// CountByTenant counts customers of a tenant
func (r *GormCustomerRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Scopes(tenant.Scope(tenantID)).
		Count(&count).Error
	return count, err
}

var _ commerce.CustomerRepository = (*GormCustomerRepository)(nil)
