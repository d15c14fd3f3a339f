package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
)

// TenantSyncer runs one tenant sync synchronously
type TenantSyncer interface {
	SyncTenant(ctx context.Context, tenantID uuid.UUID) (*appcommerce.TenantSyncReport, error)
}

// SyncJobQueue accepts asynchronous tenant syncs
type SyncJobQueue interface {
	Submit(tenantID uuid.UUID) (scheduler.SyncJob, error)
	GetJob(id uuid.UUID) (scheduler.SyncJob, error)
	GetJobHistory(limit int) []scheduler.SyncJob
}

// FleetTrigger starts a guarded fleet sync in the background
type FleetTrigger interface {
	TriggerAsync(ctx context.Context, trigger string) error
}

// SyncHandler handles sync trigger endpoints
type SyncHandler struct {
	BaseHandler
	syncer TenantSyncer
	jobs   SyncJobQueue
	fleet  FleetTrigger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncer TenantSyncer, jobs SyncJobQueue, fleet FleetTrigger) *SyncHandler {
	return &SyncHandler{
		syncer: syncer,
		jobs:   jobs,
		fleet:  fleet,
	}
}

// SyncTenant godoc
// @ID           syncTenant
// @Summary      Sync one tenant
// @Description  Pulls customers, products and orders for the tenant and reconciles them. With async=true the sync is queued and 202 carries the job.
// @Tags         sync
// @Produce      json
// @Param        tenantId path string true "Tenant ID" format(uuid)
// @Param        async query bool false "Queue the sync instead of waiting for it"
// @Success      200 {object} APIResponse[TenantSyncResponse]
// @Success      202 {object} APIResponse[SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /tenants/{tenantId}/sync [post]
func (h *SyncHandler) SyncTenant(c *gin.Context) {
	tenantID, ok := parseUUIDParam(c, "tenantId")
	if !ok {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		job, err := h.jobs.Submit(tenantID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Accepted(c, toSyncJobResponse(job))
		return
	}

	report, err := h.syncer.SyncTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTenantSyncResponse(report))
}

// GetJob godoc
// @ID           getSyncJob
// @Summary      Get a sync job
// @Description  Returns the status of a queued tenant sync and its report once finished
// @Tags         sync
// @Produce      json
// @Param        jobId path string true "Job ID" format(uuid)
// @Success      200 {object} APIResponse[SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /sync/jobs/{jobId} [get]
func (h *SyncHandler) GetJob(c *gin.Context) {
	jobID, ok := parseUUIDParam(c, "jobId")
	if !ok {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	job, err := h.jobs.GetJob(jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSyncJobResponse(job))
}

// ListJobs godoc
// @ID           listSyncJobs
// @Summary      List recent sync jobs
// @Description  Returns the most recent queued tenant syncs, newest first
// @Tags         sync
// @Produce      json
// @Param        limit query int false "Maximum number of jobs" minimum(1) maximum(100) default(20)
// @Success      200 {object} APIResponse[[]SyncJobResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			h.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	jobs := h.jobs.GetJobHistory(limit)
	result := make([]SyncJobResponse, len(jobs))
	for i, job := range jobs {
		result[i] = toSyncJobResponse(job)
	}
	h.Success(c, result)
}

// SyncFleet godoc
// @ID           syncFleet
// @Summary      Sync every connected tenant
// @Description  Starts a fleet sync in the background. Only one fleet sync runs at a time.
// @Tags         sync
// @Produce      json
// @Success      202 {object} APIResponse[FleetSyncAcceptedResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /sync/fleet [post]
func (h *SyncHandler) SyncFleet(c *gin.Context) {
	if err := h.fleet.TriggerAsync(c.Request.Context(), appcommerce.TriggerManual); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, FleetSyncAcceptedResponse{
		Accepted: true,
		Trigger:  appcommerce.TriggerManual,
	})
}
