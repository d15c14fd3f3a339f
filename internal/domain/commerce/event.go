package commerce

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/shared"
)

// EventType classifies append-only store events
type EventType string

const (
	// EventTypeCartAbandoned records a cart that reached checkout and was left
	EventTypeCartAbandoned EventType = "cart_abandoned"
)

// Event is an append-only record tied to a tenant and optionally a customer.
// Events are inserted once per delivery and never reconciled.
type Event struct {
	shared.TenantEntity
	CustomerID *uuid.UUID
	Type       EventType
	Data       json.RawMessage
}

// cartAbandonedData is the stored payload of a cart_abandoned event
type cartAbandonedData struct {
	Cart        json.RawMessage `json:"cart"`
	AbandonedAt string          `json:"abandonedAt"`
}

// NewCartAbandonedEvent wraps the raw cart payload with the time it was observed
func NewCartAbandonedEvent(tenantID uuid.UUID, customerID *uuid.UUID, cart json.RawMessage, observedAt time.Time) (*Event, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	if len(cart) == 0 {
		cart = json.RawMessage("null")
	}
	data, err := json.Marshal(cartAbandonedData{
		Cart:        cart,
		AbandonedAt: observedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("commerce: encode cart event: %w", err)
	}
	return &Event{
		TenantEntity: shared.NewTenantEntity(tenantID),
		CustomerID:   customerID,
		Type:         EventTypeCartAbandoned,
		Data:         data,
	}, nil
}
