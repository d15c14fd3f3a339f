package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when SyncMetrics is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Reconcile outcomes
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Webhook results
const (
	WebhookAccepted     = "accepted"
	WebhookUnauthorized = "unauthorized"
	WebhookUnknown      = "unknown_tenant"
	WebhookIgnored      = "ignored"
	WebhookDuplicate    = "duplicate"
	WebhookFailed       = "failed"
)

// StoreCountProvider reports how many synchronized entities a tenant holds
type StoreCountProvider interface {
	// CountEntities returns counts keyed by entity name (customers, products, orders)
	CountEntities(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)
}

// TenantProvider lists the tenants whose counts are collected
type TenantProvider interface {
	ConnectedTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// SyncMetrics holds the instruments of the sync engine.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	logger *zap.Logger

	recordsReconciled *Counter
	pagesFetched      *Counter
	tenantSyncs       *Counter
	webhookDeliveries *Counter
	tenantSyncSeconds *Histogram
	storedEntities    *Gauge

	countProvider StoreCountProvider

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// SyncMetricsConfig configures SyncMetrics
type SyncMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	CountProvider StoreCountProvider
}

// NewSyncMetrics creates the sync instruments
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		logger:        logger,
		countProvider: cfg.CountProvider,
		stopChan:      make(chan struct{}),
	}

	var err error
	if sm.recordsReconciled, err = NewCounter(cfg.Meter,
		"storesync_records_reconciled_total", "Records reconciled by resource and outcome", "{records}"); err != nil {
		return nil, err
	}
	if sm.pagesFetched, err = NewCounter(cfg.Meter,
		"storesync_pages_fetched_total", "Pages fetched from the store API", "{pages}"); err != nil {
		return nil, err
	}
	if sm.tenantSyncs, err = NewCounter(cfg.Meter,
		"storesync_tenant_syncs_total", "Tenant syncs by outcome", "{syncs}"); err != nil {
		return nil, err
	}
	if sm.webhookDeliveries, err = NewCounter(cfg.Meter,
		"storesync_webhook_deliveries_total", "Webhook deliveries by topic and result", "{deliveries}"); err != nil {
		return nil, err
	}
	if sm.tenantSyncSeconds, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "storesync_tenant_sync_duration",
		Description: "Duration of a full tenant sync",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.storedEntities, err = NewGauge(cfg.Meter,
		"storesync_stored_entities", "Synchronized entities stored per tenant", "{entities}"); err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordReconciled counts one reconciled record
func (sm *SyncMetrics) RecordReconciled(ctx context.Context, tenantID uuid.UUID, resource, outcome string) {
	if sm == nil {
		return
	}
	sm.recordsReconciled.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrResource.String(resource),
		AttrOutcome.String(outcome),
	)
}

// RecordPages counts pages fetched for a resource
func (sm *SyncMetrics) RecordPages(ctx context.Context, tenantID uuid.UUID, resource string, pages int) {
	if sm == nil || pages <= 0 {
		return
	}
	sm.pagesFetched.Add(ctx, int64(pages),
		AttrTenantID.String(tenantID.String()),
		AttrResource.String(resource),
	)
}

// RecordTenantSync counts a finished tenant sync and records its duration
func (sm *SyncMetrics) RecordTenantSync(ctx context.Context, tenantID uuid.UUID, trigger string, elapsed time.Duration, err error) {
	if sm == nil {
		return
	}
	outcome := "succeeded"
	if err != nil {
		outcome = OutcomeFailed
	}
	sm.tenantSyncs.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrTrigger.String(trigger),
		AttrOutcome.String(outcome),
	)
	sm.tenantSyncSeconds.RecordDuration(ctx, elapsed,
		AttrTrigger.String(trigger),
		AttrOutcome.String(outcome),
	)
}

// RecordWebhook counts a webhook delivery
func (sm *SyncMetrics) RecordWebhook(ctx context.Context, topic, result string) {
	if sm == nil {
		return
	}
	sm.webhookDeliveries.Inc(ctx,
		AttrTopic.String(topic),
		AttrOutcome.String(result),
	)
}

// RecordStoredEntities records the stored count of one entity for a tenant
func (sm *SyncMetrics) RecordStoredEntities(ctx context.Context, tenantID uuid.UUID, entity string, count int64) {
	if sm == nil {
		return
	}
	sm.storedEntities.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrEntity.String(entity),
	)
}

// StartPeriodicCollection records stored entity counts for every tenant
// each interval until Stop or ctx cancellation. Only the first call starts.
func (sm *SyncMetrics) StartPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	if sm == nil {
		return
	}
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go sm.runPeriodicCollection(ctx, tenants, interval)
	})
}

func (sm *SyncMetrics) runPeriodicCollection(ctx context.Context, tenants TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.CollectStoredEntities(ctx, tenants)
	for {
		select {
		case <-sm.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CollectStoredEntities(ctx, tenants)
		}
	}
}

// CollectStoredEntities records entity counts for every tenant once
func (sm *SyncMetrics) CollectStoredEntities(ctx context.Context, tenants TenantProvider) {
	if sm == nil || sm.countProvider == nil {
		return
	}

	tenantIDs, err := tenants.ConnectedTenantIDs(ctx)
	if err != nil {
		sm.logger.Error("Failed to list tenants for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		counts, err := sm.countProvider.CountEntities(ctx, tenantID)
		if err != nil {
			sm.logger.Warn("Failed to count stored entities",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		for entity, count := range counts {
			sm.RecordStoredEntities(ctx, tenantID, entity, count)
		}
	}
}

// Stop ends periodic collection
func (sm *SyncMetrics) Stop() {
	if sm == nil {
		return
	}
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}
