package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// WebhookRegistrar subscribes a tenant's store to every handled topic
type WebhookRegistrar struct {
	tenants       commerce.TenantRepository
	client        integration.StoreClient
	registrations commerce.WebhookRegistrationRepository
	publicBaseURL string
	logger        *zap.Logger
}

// NewWebhookRegistrar creates a new WebhookRegistrar. publicBaseURL is the
// externally reachable base of this service.
func NewWebhookRegistrar(
	tenants commerce.TenantRepository,
	client integration.StoreClient,
	registrations commerce.WebhookRegistrationRepository,
	publicBaseURL string,
	logger *zap.Logger,
) *WebhookRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookRegistrar{
		tenants:       tenants,
		client:        client,
		registrations: registrations,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// RegisterWebhooks registers every handled topic upstream and records each
// registration locally. A topic the store reports as already registered
// counts as registered. Failures on one topic do not stop the others; the
// returned error joins them.
func (r *WebhookRegistrar) RegisterWebhooks(ctx context.Context, tenantID uuid.UUID) ([]commerce.WebhookRegistration, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commerce", "register_webhooks",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer span.End()

	if r.publicBaseURL == "" {
		return nil, fmt.Errorf("%w: webhook public base url is not set", integration.ErrPlatformNotConfigured)
	}

	tenant, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	if !tenant.HasCredentials() {
		return nil, commerce.ErrTenantNotConnected
	}

	conn, err := r.client.Connect(tenant.ID, tenant.ShopDomain, tenant.AccessToken)
	if err != nil {
		return nil, err
	}

	address := commerce.CallbackAddress(r.publicBaseURL, tenant.ID)
	var (
		registered []commerce.WebhookRegistration
		errs       []error
	)
	for _, topic := range commerce.RegisteredTopics() {
		reg, err := r.registerTopic(ctx, conn, topic, address)
		if err != nil {
			r.logger.Warn("Webhook registration failed",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("topic", string(topic)),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
			continue
		}
		registered = append(registered, *reg)
	}

	err = errors.Join(errs...)
	telemetry.RecordError(span, err)
	return registered, err
}

func (r *WebhookRegistrar) registerTopic(ctx context.Context, conn *integration.Connection, topic commerce.Topic, address string) (*commerce.WebhookRegistration, error) {
	externalID, existed, err := r.client.RegisterWebhook(ctx, conn, string(topic), address)
	if err != nil {
		return nil, err
	}
	if existed {
		r.logger.Debug("Webhook already registered upstream", zap.String("topic", string(topic)))
	}

	reg, err := commerce.NewWebhookRegistration(conn.TenantID, topic, address, externalID)
	if err != nil {
		return nil, err
	}
	return r.registrations.Upsert(ctx, reg)
}
