package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/infrastructure/persistence/tenant"
)

// GormEventRepository implements commerce.EventRepository using GORM
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GormEventRepository
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Create appends an event
func (r *GormEventRepository) Create(ctx context.Context, event *commerce.Event) error {
	return r.db.WithContext(ctx).Create(models.EventModelFromDomain(event)).Error
}

// FindByTenant lists a tenant's events of one type, oldest first
func (r *GormEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, eventType commerce.EventType) ([]commerce.Event, error) {
	var eventModels []models.EventModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Where("type = ?", string(eventType)).
		Order("created_at ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]commerce.Event, len(eventModels))
	for i := range eventModels {
		events[i] = eventModels[i].ToDomain()
	}
	return events, nil
}

var _ commerce.EventRepository = (*GormEventRepository)(nil)
