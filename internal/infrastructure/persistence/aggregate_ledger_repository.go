package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/infrastructure/persistence/tenant"
)

// GormAggregateLedger implements commerce.AggregateLedger using GORM.
// The (tenant_id, order_id) primary key turns MarkApplied into a
// check-and-set: exactly one caller sees an inserted row.
type GormAggregateLedger struct {
	db *gorm.DB
}

// NewGormAggregateLedger creates a new GormAggregateLedger
func NewGormAggregateLedger(db *gorm.DB) *GormAggregateLedger {
	return &GormAggregateLedger{db: db}
}

// MarkApplied inserts the marker and reports whether this call inserted it
func (l *GormAggregateLedger) MarkApplied(ctx context.Context, application *commerce.AggregateApplication) (bool, error) {
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "order_id"}},
			DoNothing: true,
		}).
		Create(models.CustomerAggregateApplicationModelFromDomain(application))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkUncounted clears the counted flag of an existing marker
func (l *GormAggregateLedger) MarkUncounted(ctx context.Context, tenantID, orderID uuid.UUID) error {
	return l.db.WithContext(ctx).
		Model(&models.CustomerAggregateApplicationModel{}).
		Scopes(tenant.Scope(tenantID)).
		Where("order_id = ?", orderID).
		Update("counted", false).Error
}

var _ commerce.AggregateLedger = (*GormAggregateLedger)(nil)
