package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// Sync triggers, used as metric and profiling labels
const (
	TriggerManual    = "manual"
	TriggerFleet     = "fleet"
	TriggerScheduled = "scheduled"
)

// ResourceReport summarizes one resource step of a tenant sync
type ResourceReport struct {
	Resource         integration.Resource
	Fetched          int
	Created          int
	Updated          int
	Skipped          int
	Failed           int
	Pages            int
	Partial          bool
	PageLimitReached bool
	Denied           bool
	Error            string
}

// TenantSyncReport summarizes one tenant sync
type TenantSyncReport struct {
	TenantID   uuid.UUID
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Resources  []ResourceReport
	// DeniedResources lists resources the credentials lack scope for
	DeniedResources []integration.Resource
	Error           string
	// Transient is true when the error is worth retrying on a later run
	Transient bool
}

// Duration returns how long the sync ran
func (r *TenantSyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether every attempted step completed
func (r *TenantSyncReport) Succeeded() bool {
	return r.Error == ""
}

// FleetSyncReport summarizes a run over every connected tenant
type FleetSyncReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Tenants    []TenantSyncReport
	Succeeded  int
	Failed     int
}

// SyncOptions configures the orchestrator
type SyncOptions struct {
	// Workers bounds how many tenants sync in parallel during a fleet run
	Workers int
	// TenantTimeout bounds one tenant sync; zero means no bound
	TenantTimeout time.Duration
}

// SyncService pulls customers, products and orders from each tenant's store
// and reconciles them locally.
type SyncService struct {
	tenants    commerce.TenantRepository
	client     integration.StoreClient
	decoder    integration.RecordDecoder
	reconciler *Reconciler
	options    SyncOptions
	logger     *zap.Logger
	metrics    *telemetry.SyncMetrics

	flights singleflight.Group
}

// NewSyncService creates a new SyncService
func NewSyncService(
	tenants commerce.TenantRepository,
	client integration.StoreClient,
	decoder integration.RecordDecoder,
	reconciler *Reconciler,
	options SyncOptions,
	logger *zap.Logger,
) *SyncService {
	if options.Workers <= 0 {
		options.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		tenants:    tenants,
		client:     client,
		decoder:    decoder,
		reconciler: reconciler,
		options:    options,
		logger:     logger,
	}
}

// SetSyncMetrics sets the sync metrics collector
func (s *SyncService) SetSyncMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// SyncTenant runs customers, products and orders for one tenant, in that
// order. A 403 on a resource skips it; any other fetch error aborts the
// remaining steps. Concurrent calls for the same tenant share one run.
func (s *SyncService) SyncTenant(ctx context.Context, tenantID uuid.UUID) (*TenantSyncReport, error) {
	return s.syncShared(ctx, tenantID, TriggerManual)
}

// syncShared joins or starts the tenant's run. The run is detached from the
// caller that started it, so a joined caller never inherits another caller's
// cancellation; each caller only waits as long as its own ctx allows.
func (s *SyncService) syncShared(ctx context.Context, tenantID uuid.UUID, trigger string) (*TenantSyncReport, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(tenantID.String(), func() (any, error) {
		return s.syncTenant(runCtx, tenantID, trigger)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("Shared in-flight tenant sync", zap.String("tenant_id", tenantID.String()))
		}
		report, _ := res.Val.(*TenantSyncReport)
		return report, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SyncService) syncTenant(ctx context.Context, tenantID uuid.UUID, trigger string) (*TenantSyncReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commerce", "sync_tenant",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
	)
	defer span.End()

	if s.options.TenantTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.TenantTimeout)
		defer cancel()
	}

	log := s.logger.With(zap.String("tenant_id", tenantID.String()), zap.String("trigger", trigger))
	report := &TenantSyncReport{TenantID: tenantID, Trigger: trigger, StartedAt: time.Now()}

	err := s.runSequence(ctx, tenantID, report, log)

	report.FinishedAt = time.Now()
	if err != nil {
		report.Error = err.Error()
		report.Transient = integration.IsTransient(err)
		telemetry.RecordError(span, err)
		log.Warn("Tenant sync failed",
			zap.Duration("elapsed", report.Duration()),
			zap.Bool("transient", report.Transient),
			zap.Error(err),
		)
	} else {
		telemetry.SetOK(span)
		log.Info("Tenant sync completed", zap.Duration("elapsed", report.Duration()))
	}
	s.metrics.RecordTenantSync(ctx, tenantID, trigger, report.Duration(), err)
	return report, err
}

func (s *SyncService) runSequence(ctx context.Context, tenantID uuid.UUID, report *TenantSyncReport, log *zap.Logger) error {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrTenantNotFound
		}
		return fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.HasCredentials() {
		return commerce.ErrTenantNotConnected
	}

	conn, err := s.client.Connect(tenant.ID, tenant.ShopDomain, tenant.AccessToken)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		report.DeniedResources = conn.DeniedResources()
	}()

	for _, resource := range integration.SyncSequence() {
		step, err := s.syncResource(ctx, conn, resource, log)
		report.Resources = append(report.Resources, step)
		if err == nil {
			continue
		}
		if errors.Is(err, integration.ErrPlatformForbidden) {
			log.Warn("Missing access scope, skipping resource", zap.String("resource", resource.String()))
			continue
		}
		return fmt.Errorf("sync %s: %w", resource, err)
	}
	return nil
}

// syncResource fetches and reconciles one resource. Partial pagination keeps
// the fetched records; the step reports the error but the tenant continues
// unless the context is done.
func (s *SyncService) syncResource(ctx context.Context, conn *integration.Connection, resource integration.Resource, log *zap.Logger) (ResourceReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commerce", "sync_resource",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, conn.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrResource, resource.String()),
	)
	defer span.End()

	step := ResourceReport{Resource: resource}

	result, err := s.client.FetchAll(ctx, conn, resource)
	if err != nil {
		step.Denied = errors.Is(err, integration.ErrPlatformForbidden)
		step.Error = err.Error()
		if !step.Denied {
			telemetry.RecordError(span, err)
		}
		return step, err
	}

	step.Fetched = result.Len()
	step.Pages = result.Pages
	step.Partial = result.Partial
	step.PageLimitReached = result.PageLimitReached
	s.metrics.RecordPages(ctx, conn.TenantID, resource.String(), result.Pages)

	for _, raw := range result.Records {
		s.reconcileRecord(ctx, conn.TenantID, resource, raw, result.FetchedAt, &step, log)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPages, result.Pages,
		telemetry.SpanAttrRecords, result.Len(),
	)

	if result.Err != nil {
		step.Error = result.Err.Error()
		if ctx.Err() != nil {
			return step, result.Err
		}
	}
	return step, nil
}

// reconcileRecord decodes and applies one record. Failures are counted and
// logged; they never stop the batch.
func (s *SyncService) reconcileRecord(ctx context.Context, tenantID uuid.UUID, resource integration.Resource, raw json.RawMessage, fetchedAt time.Time, step *ResourceReport, log *zap.Logger) {
	outcome, err := s.applyRecord(ctx, tenantID, resource, raw, fetchedAt)
	if errors.Is(err, ErrOrderSkipped) {
		err = nil
	}
	s.metrics.RecordReconciled(ctx, tenantID, resource.String(), outcomeLabel(outcome, err))

	switch {
	case outcome.Skipped:
		step.Skipped++
	case err != nil:
		step.Failed++
		log.Warn("Failed to reconcile record",
			zap.String("resource", resource.String()),
			zap.Error(err),
		)
	case outcome.Created:
		step.Created++
	default:
		step.Updated++
	}
}

func (s *SyncService) applyRecord(ctx context.Context, tenantID uuid.UUID, resource integration.Resource, raw json.RawMessage, fetchedAt time.Time) (Outcome, error) {
	switch resource {
	case integration.ResourceCustomers:
		ext, err := s.decoder.DecodeCustomer(raw)
		if err != nil {
			return Outcome{}, err
		}
		ext.SnapshotAt = fetchedAt
		return s.reconciler.ReconcileCustomer(ctx, tenantID, ext, commerce.CustomerModeFull)
	case integration.ResourceProducts:
		ext, err := s.decoder.DecodeProduct(raw)
		if err != nil {
			return Outcome{}, err
		}
		return s.reconciler.ReconcileProduct(ctx, tenantID, ext)
	case integration.ResourceOrders:
		ext, err := s.decoder.DecodeOrder(raw)
		if err != nil {
			return Outcome{}, err
		}
		return s.reconciler.ReconcileOrder(ctx, tenantID, ext)
	default:
		return Outcome{}, fmt.Errorf("unsupported resource %q", resource)
	}
}

// SyncFleet syncs every tenant that has credentials through a bounded worker
// pool. One tenant's failure is recorded and never stops the others.
func (s *SyncService) SyncFleet(ctx context.Context, trigger string) (*FleetSyncReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "commerce", "sync_fleet")
	defer span.End()

	tenants, err := s.tenants.FindWithCredentials(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list connected tenants: %w", err)
	}

	report := &FleetSyncReport{
		StartedAt: time.Now(),
		Tenants:   make([]TenantSyncReport, len(tenants)),
	}
	s.logger.Info("Fleet sync started",
		zap.Int("tenants", len(tenants)),
		zap.Int("workers", s.options.Workers),
		zap.String("trigger", trigger),
	)

	var g errgroup.Group
	g.SetLimit(s.options.Workers)
	for i := range tenants {
		tenantID := tenants[i].ID
		g.Go(func() error {
			labels := telemetry.SyncLabels("tenant_sync", tenantID.String(), trigger)
			telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
				result, err := s.syncShared(ctx, tenantID, trigger)
				if result == nil {
					result = &TenantSyncReport{TenantID: tenantID, Trigger: trigger}
				}
				if err != nil && result.Error == "" {
					result.Error = err.Error()
				}
				report.Tenants[i] = *result
			})
			return nil
		})
	}
	_ = g.Wait()

	for _, t := range report.Tenants {
		if t.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.FinishedAt = time.Now()

	telemetry.SetAttributes(span, "succeeded", report.Succeeded, "failed", report.Failed)
	s.logger.Info("Fleet sync finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}
