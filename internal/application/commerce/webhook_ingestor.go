package commerce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// IngestResult tells the caller what happened to an authenticated delivery
type IngestResult string

const (
	IngestAccepted  IngestResult = "accepted"
	IngestSkipped   IngestResult = "skipped"
	IngestIgnored   IngestResult = "ignored"
	IngestDuplicate IngestResult = "duplicate"
	IngestInvalid   IngestResult = "invalid"
)

// WebhookDelivery is one inbound webhook request
type WebhookDelivery struct {
	TenantID   string
	Topic      string
	Body       []byte
	Signature  string
	DeliveryID string
}

// WebhookIngestor authenticates webhook deliveries and applies them through
// the reconciler.
type WebhookIngestor struct {
	verifier   integration.SignatureVerifier
	tenants    commerce.TenantRepository
	decoder    integration.RecordDecoder
	reconciler *Reconciler
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics

	dedup    shared.IdempotencyStore
	dedupTTL time.Duration
}

// NewWebhookIngestor creates a new WebhookIngestor
func NewWebhookIngestor(
	verifier integration.SignatureVerifier,
	tenants commerce.TenantRepository,
	decoder integration.RecordDecoder,
	reconciler *Reconciler,
	logger *zap.Logger,
) *WebhookIngestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookIngestor{
		verifier:   verifier,
		tenants:    tenants,
		decoder:    decoder,
		reconciler: reconciler,
		logger:     logger,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (w *WebhookIngestor) SetSyncMetrics(m *telemetry.SyncMetrics) {
	w.metrics = m
}

// EnableDeduplication remembers delivery ids in store for ttl so repeated
// deliveries are acknowledged without being applied again.
func (w *WebhookIngestor) EnableDeduplication(store shared.IdempotencyStore, ttl time.Duration) {
	w.dedup = store
	w.dedupTTL = ttl
}

// Ingest verifies and applies a delivery. The signature is checked before
// anything else is read or written.
func (w *WebhookIngestor) Ingest(ctx context.Context, d WebhookDelivery) (IngestResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commerce", "ingest_webhook",
		telemetry.WithAttribute(telemetry.SpanAttrTopic, d.Topic),
	)
	defer span.End()

	result, err := w.ingest(ctx, d)

	label := string(result)
	switch {
	case errors.Is(err, integration.ErrInvalidSignature):
		label = telemetry.WebhookUnauthorized
	case errors.Is(err, ErrTenantNotFound):
		label = telemetry.WebhookUnknown
	case err != nil:
		label = telemetry.WebhookFailed
		telemetry.RecordError(span, err)
	}
	w.metrics.RecordWebhook(ctx, d.Topic, label)
	return result, err
}

func (w *WebhookIngestor) ingest(ctx context.Context, d WebhookDelivery) (IngestResult, error) {
	if err := w.verifier.Verify(d.Body, d.Signature); err != nil {
		w.logger.Warn("Rejected webhook with invalid signature",
			zap.String("topic", d.Topic),
			zap.String("tenant_id", d.TenantID),
		)
		return "", err
	}

	tenantID, err := uuid.Parse(d.TenantID)
	if err != nil {
		return "", ErrTenantNotFound
	}
	if _, err := w.tenants.FindByID(ctx, tenantID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", ErrTenantNotFound
		}
		return "", fmt.Errorf("load tenant: %w", err)
	}

	if w.dedup != nil && d.DeliveryID != "" {
		seen, err := w.dedup.IsProcessed(ctx, d.DeliveryID)
		if err != nil {
			w.logger.Warn("Delivery de-duplication unavailable", zap.Error(err))
		} else if seen {
			return IngestDuplicate, nil
		}
	}

	log := w.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("topic", d.Topic),
	)

	result, err := w.dispatch(ctx, tenantID, commerce.Topic(d.Topic), d.Body)
	if err != nil {
		if errors.Is(err, integration.ErrInvalidRecord) {
			log.Warn("Discarding malformed webhook payload", zap.Error(err))
			return IngestInvalid, nil
		}
		log.Error("Failed to apply webhook", zap.Error(err))
		return "", err
	}

	if w.dedup != nil && d.DeliveryID != "" {
		if _, err := w.dedup.MarkProcessed(ctx, d.DeliveryID, w.dedupTTL); err != nil {
			log.Warn("Failed to remember delivery", zap.Error(err))
		}
	}
	log.Debug("Webhook applied", zap.String("result", string(result)))
	return result, nil
}

func (w *WebhookIngestor) dispatch(ctx context.Context, tenantID uuid.UUID, topic commerce.Topic, body []byte) (IngestResult, error) {
	switch topic {
	case commerce.TopicOrdersCreate, commerce.TopicOrdersUpdated:
		order, err := w.decoder.DecodeOrder(body)
		if err != nil {
			return "", err
		}
		if _, err := w.reconciler.ReconcileOrder(ctx, tenantID, order); err != nil {
			if errors.Is(err, ErrOrderSkipped) {
				return IngestSkipped, nil
			}
			return "", err
		}
		return IngestAccepted, nil

	case commerce.TopicCustomersCreate, commerce.TopicCustomersUpdate:
		customer, err := w.decoder.DecodeCustomer(body)
		if err != nil {
			return "", err
		}
		if _, err := w.reconciler.ReconcileCustomer(ctx, tenantID, customer, commerce.CustomerModeIdentity); err != nil {
			return "", err
		}
		return IngestAccepted, nil

	case commerce.TopicCartsUpdate:
		cart, err := w.decoder.DecodeCart(body)
		if err != nil {
			return "", err
		}
		outcome, err := w.reconciler.RecordCartAbandoned(ctx, tenantID, cart)
		if err != nil {
			return "", err
		}
		if outcome.Skipped {
			return IngestSkipped, nil
		}
		return IngestAccepted, nil

	case commerce.TopicCheckoutsCreate, commerce.TopicCheckoutsUpdate:
		return IngestAccepted, nil

	default:
		return IngestIgnored, nil
	}
}
