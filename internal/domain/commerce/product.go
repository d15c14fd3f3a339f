package commerce

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storesync/backend/internal/domain/shared"
)

// Product is the local projection of an upstream product.
// Price is the representative price taken from the first variant.
type Product struct {
	shared.TenantEntity
	ExternalID string
	Title      string
	Price      decimal.Decimal
}

// NewProduct creates a product
func NewProduct(tenantID uuid.UUID, externalID, title string, price decimal.Decimal) (*Product, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrMissingExternalID
	}
	if price.IsNegative() {
		price = decimal.Zero
	}
	return &Product{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ExternalID:   externalID,
		Title:        title,
		Price:        price,
	}, nil
}
