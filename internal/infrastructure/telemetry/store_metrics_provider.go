package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/commerce"
)

// entityCounter is the counting half of the commerce repositories
type entityCounter interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// RepositoryStoreCountProvider counts synchronized rows per tenant through the
// commerce repositories.
type RepositoryStoreCountProvider struct {
	counters map[string]entityCounter
}

// NewRepositoryStoreCountProvider creates a new RepositoryStoreCountProvider
func NewRepositoryStoreCountProvider(
	customers commerce.CustomerRepository,
	products commerce.ProductRepository,
	orders commerce.OrderRepository,
) *RepositoryStoreCountProvider {
	return &RepositoryStoreCountProvider{
		counters: map[string]entityCounter{
			"customers": customers,
			"products":  products,
			"orders":    orders,
		},
	}
}

// CountEntities counts customers, products and orders of a tenant
func (p *RepositoryStoreCountProvider) CountEntities(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	counts := make(map[string]int64, len(p.counters))
	for entity, counter := range p.counters {
		count, err := counter.CountByTenant(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", entity, err)
		}
		counts[entity] = count
	}
	return counts, nil
}

// RepositoryTenantProvider lists connected tenants through the tenant repository
type RepositoryTenantProvider struct {
	tenants commerce.TenantRepository
}

// NewRepositoryTenantProvider creates a new RepositoryTenantProvider
func NewRepositoryTenantProvider(tenants commerce.TenantRepository) *RepositoryTenantProvider {
	return &RepositoryTenantProvider{tenants: tenants}
}

// ConnectedTenantIDs returns ids of tenants with credentials
func (p *RepositoryTenantProvider) ConnectedTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	tenants, err := p.tenants.FindWithCredentials(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(tenants))
	for i := range tenants {
		ids[i] = tenants[i].ID
	}
	return ids, nil
}
