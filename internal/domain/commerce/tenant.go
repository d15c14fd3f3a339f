package commerce

import (
	"strings"

	"github.com/storesync/backend/internal/domain/shared"
)

// Tenant is one connected upstream store. Tenants are created outside the sync
// engine; the engine only reads them.
type Tenant struct {
	shared.BaseEntity
	Name        string
	ShopDomain  string
	AccessToken string
}

// NewTenant creates a tenant for the given store domain
func NewTenant(name, shopDomain, accessToken string) *Tenant {
	return &Tenant{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        name,
		ShopDomain:  shopDomain,
		AccessToken: accessToken,
	}
}

// HasCredentials reports whether the tenant can be synchronized
func (t *Tenant) HasCredentials() bool {
	return strings.TrimSpace(t.ShopDomain) != "" && strings.TrimSpace(t.AccessToken) != ""
}

// RotateToken replaces the upstream access token
func (t *Tenant) RotateToken(token string) {
	t.AccessToken = token
	t.Touch()
}
