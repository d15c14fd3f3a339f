package commerce

import (
	"errors"

	"github.com/storesync/backend/internal/domain/shared"
)

var (
	// ErrTenantNotFound is returned when a tenant id does not resolve
	ErrTenantNotFound = shared.NewDomainError("TENANT_NOT_FOUND", "Tenant not found")

	// ErrOrderSkipped marks an order that carries no customer. Nothing is written.
	ErrOrderSkipped = errors.New("commerce: order skipped: no customer")
)
