package commerce

import "errors"

var (
	// ErrMissingExternalID is returned when an upstream record carries no identifier
	ErrMissingExternalID = errors.New("commerce: external id is required")

	// ErrMissingTenantID is returned when an entity is built without an owning tenant
	ErrMissingTenantID = errors.New("commerce: tenant id is required")

	// ErrOrderWithoutCustomer is returned when no customer can be resolved for an order
	ErrOrderWithoutCustomer = errors.New("commerce: order has no resolvable customer")

	// ErrTenantNotConnected is returned when a tenant holds no upstream credentials
	ErrTenantNotConnected = errors.New("commerce: tenant has no upstream credentials")

	// ErrInvalidQuantity is returned for negative line item quantities
	ErrInvalidQuantity = errors.New("commerce: line item quantity cannot be negative")
)
