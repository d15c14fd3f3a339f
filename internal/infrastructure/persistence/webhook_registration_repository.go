package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/infrastructure/persistence/tenant"
)

// GormWebhookRegistrationRepository implements
// commerce.WebhookRegistrationRepository using GORM
type GormWebhookRegistrationRepository struct {
	db *gorm.DB
}

// NewGormWebhookRegistrationRepository creates a new repository
func NewGormWebhookRegistrationRepository(db *gorm.DB) *GormWebhookRegistrationRepository {
	return &GormWebhookRegistrationRepository{db: db}
}

// Upsert inserts the registration or refreshes its address and upstream id.
// An empty upstream id never overwrites a known one.
func (r *GormWebhookRegistrationRepository) Upsert(ctx context.Context, registration *commerce.WebhookRegistration) (*commerce.WebhookRegistration, error) {
	model := models.WebhookRegistrationModelFromDomain(registration)
	model.UpdatedAt = time.Now()

	columns := []string{"address", "updated_at"}
	if registration.ExternalID != "" {
		columns = append(columns, "external_id")
	}

	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic"}, {Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(model).Error; err != nil {
		return nil, err
	}

	var stored models.WebhookRegistrationModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(registration.TenantID)).
		Where("topic = ?", string(registration.Topic)).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return stored.ToDomain(), nil
}

// FindByTenant lists a tenant's registrations ordered by topic
func (r *GormWebhookRegistrationRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]commerce.WebhookRegistration, error) {
	var regModels []models.WebhookRegistrationModel
	if err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(tenantID)).
		Order("topic ASC").
		Find(&regModels).Error; err != nil {
		return nil, err
	}

	regs := make([]commerce.WebhookRegistration, len(regModels))
	for i := range regModels {
		regs[i] = *regModels[i].ToDomain()
	}
	return regs, nil
}

var _ commerce.WebhookRegistrationRepository = (*GormWebhookRegistrationRepository)(nil)
