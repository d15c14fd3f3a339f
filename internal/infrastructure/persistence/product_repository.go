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

var productKeyColumns = []clause.Column{{Name: "external_id"}, {Name: "tenant_id"}}

// GormProductRepository implements commerce.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByExternalID finds a product by its upstream identity
func (r *GormProductRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*commerce.Product, error) {
	var model models.ProductModel
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

// Upsert inserts the product or overwrites its title and price
func (r *GormProductRepository) Upsert(ctx context.Context, product *commerce.Product) (*commerce.Product, bool, error) {
	model := models.ProductModelFromDomain(product)
	model.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   productKeyColumns,
			DoUpdates: clause.AssignmentColumns([]string{"title", "price", "updated_at"}),
		}).
		Create(model).Error; err != nil {
		return nil, false, err
	}

	stored, err := r.FindByExternalID(ctx, product.TenantID, product.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, stored.ID == product.ID, nil
}

// CreateIfAbsent inserts a stub product unless its key already exists.
// An existing product is never overwritten by a stub.
func (r *GormProductRepository) CreateIfAbsent(ctx context.Context, product *commerce.Product) (*commerce.Product, bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   productKeyColumns,
			DoNothing: true,
		}).
		Create(models.ProductModelFromDomain(product))
	if result.Error != nil {
		return nil, false, result.Error
	}

	stored, err := r.FindByExternalID(ctx, product.TenantID, product.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, result.RowsAffected == 1, nil
}

// CountByTenant counts products of a tenant
func (r *GormProductRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Scopes(tenant.Scope(tenantID)).
		Count(&count).Error
	return count, err
}

var _ commerce.ProductRepository = (*GormProductRepository)(nil)
