package commerce

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/shared"
)

// Topic is an upstream webhook topic
type Topic string

const (
	TopicOrdersCreate    Topic = "orders/create"
	TopicOrdersUpdated   Topic = "orders/updated"
	TopicCustomersCreate Topic = "customers/create"
	TopicCustomersUpdate Topic = "customers/update"
	TopicCartsUpdate     Topic = "carts/update"
	TopicCheckoutsCreate Topic = "checkouts/create"
	TopicCheckoutsUpdate Topic = "checkouts/update"
)

// RegisteredTopics are the topics the engine subscribes to upstream
func RegisteredTopics() []Topic {
	return []Topic{
		TopicOrdersCreate,
		TopicOrdersUpdated,
		TopicCustomersCreate,
		TopicCustomersUpdate,
		TopicCartsUpdate,
		TopicCheckoutsCreate,
		TopicCheckoutsUpdate,
	}
}

// WebhookRegistration records the callback registered upstream for a topic.
// Unique per (Topic, TenantID).
type WebhookRegistration struct {
	shared.TenantEntity
	Topic      Topic
	Address    string
	ExternalID string
}

// NewWebhookRegistration creates a registration record
func NewWebhookRegistration(tenantID uuid.UUID, topic Topic, address, externalID string) (*WebhookRegistration, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMissingTenantID
	}
	if strings.TrimSpace(string(topic)) == "" || strings.TrimSpace(address) == "" {
		return nil, shared.ErrInvalidInput
	}
	return &WebhookRegistration{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Topic:        topic,
		Address:      address,
		ExternalID:   externalID,
	}, nil
}

// CallbackAddress builds the public callback URL for a tenant
func CallbackAddress(publicBaseURL string, tenantID uuid.UUID) string {
	return fmt.Sprintf("%s/webhook/%s", strings.TrimRight(publicBaseURL, "/"), tenantID.String())
}
