package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

type mockTenantSyncer struct {
	report *appcommerce.TenantSyncReport
	err    error
	calls  int
}

func (m *mockTenantSyncer) SyncTenant(ctx context.Context, tenantID uuid.UUID) (*appcommerce.TenantSyncReport, error) {
	m.calls++
	return m.report, m.err
}

type mockJobQueue struct {
	job       scheduler.SyncJob
	submitErr error
	getErr    error
	history   []scheduler.SyncJob
	submitted []uuid.UUID
}

func (m *mockJobQueue) Submit(tenantID uuid.UUID) (scheduler.SyncJob, error) {
	m.submitted = append(m.submitted, tenantID)
	if m.submitErr != nil {
		return scheduler.SyncJob{}, m.submitErr
	}
	job := *scheduler.NewSyncJob(tenantID)
	return job, nil
}

func (m *mockJobQueue) GetJob(id uuid.UUID) (scheduler.SyncJob, error) {
	return m.job, m.getErr
}

func (m *mockJobQueue) GetJobHistory(limit int) []scheduler.SyncJob {
	if limit < len(m.history) {
		return m.history[:limit]
	}
	return m.history
}

type mockFleetTrigger struct {
	err      error
	triggers []string
}

func (m *mockFleetTrigger) TriggerAsync(ctx context.Context, trigger string) error {
	m.triggers = append(m.triggers, trigger)
	return m.err
}

func newSyncEngine(h *SyncHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/tenants/:tenantId/sync", h.SyncTenant)
	r.GET("/api/v1/sync/jobs", h.ListJobs)
	r.GET("/api/v1/sync/jobs/:jobId", h.GetJob)
	r.POST("/api/v1/sync/fleet", h.SyncFleet)
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func sampleReport(tenantID uuid.UUID) *appcommerce.TenantSyncReport {
	started := time.Now().Add(-2 * time.Second)
	return &appcommerce.TenantSyncReport{
		TenantID:   tenantID,
		Trigger:    appcommerce.TriggerManual,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Resources: []appcommerce.ResourceReport{
			{Resource: integration.ResourceCustomers, Fetched: 3, Created: 3, Pages: 1},
			{Resource: integration.ResourceProducts, Denied: true, Error: "forbidden"},
			{Resource: integration.ResourceOrders, Fetched: 2, Created: 1, Skipped: 1, Pages: 1},
		},
		DeniedResources: []integration.Resource{integration.ResourceProducts},
	}
}

func TestSyncHandler_SyncTenant(t *testing.T) {
	tenantID := uuid.New()

	t.Run("synchronous returns report", func(t *testing.T) {
		syncer := &mockTenantSyncer{report: sampleReport(tenantID)}
		r := newSyncEngine(NewSyncHandler(syncer, &mockJobQueue{}, &mockFleetTrigger{}))

		w := serve(r, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/sync")

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, tenantID.String(), data["tenant_id"])
		assert.Equal(t, true, data["succeeded"])
		assert.EqualValues(t, 1500, data["duration_ms"])
		resources := data["resources"].([]any)
		require.Len(t, resources, 3)
		assert.Equal(t, "products", resources[1].(map[string]any)["resource"])
		assert.Equal(t, true, resources[1].(map[string]any)["denied"])
		assert.Equal(t, []any{"products"}, data["denied_resources"])
		assert.NotContains(t, data, "transient")
	})

	t.Run("errors map to status codes", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
		}{
			{appcommerce.ErrTenantNotFound, http.StatusNotFound},
			{commerce.ErrTenantNotConnected, http.StatusUnprocessableEntity},
			{integration.ErrPlatformUnavailable, http.StatusInternalServerError},
		}
		for _, tt := range tests {
			syncer := &mockTenantSyncer{err: tt.err}
			r := newSyncEngine(NewSyncHandler(syncer, &mockJobQueue{}, &mockFleetTrigger{}))

			w := serve(r, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/sync")
			assert.Equal(t, tt.status, w.Code, tt.err.Error())
		}
	})

	t.Run("async submits a job", func(t *testing.T) {
		syncer := &mockTenantSyncer{}
		jobs := &mockJobQueue{}
		r := newSyncEngine(NewSyncHandler(syncer, jobs, &mockFleetTrigger{}))

		w := serve(r, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/sync?async=true")

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 0, syncer.calls)
		require.Equal(t, []uuid.UUID{tenantID}, jobs.submitted)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, string(scheduler.SyncJobStatusPending), data["status"])
		assert.NotEmpty(t, data["id"])
	})

	t.Run("async rejects a second job for the tenant", func(t *testing.T) {
		jobs := &mockJobQueue{submitErr: scheduler.ErrSyncAlreadyInProgress}
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, jobs, &mockFleetTrigger{}))

		w := serve(r, http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/sync?async=true")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeSyncInProgress, decodeResponse(t, w).Error.Code)
	})

	t.Run("invalid tenant id", func(t *testing.T) {
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{}, &mockFleetTrigger{}))

		w := serve(r, http.MethodPost, "/api/v1/tenants/abc/sync")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_GetJob(t *testing.T) {
	tenantID := uuid.New()
	job := *scheduler.NewSyncJob(tenantID)
	job.Start()
	job.Complete(sampleReport(tenantID))

	t.Run("found", func(t *testing.T) {
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{job: job}, &mockFleetTrigger{}))

		w := serve(r, http.MethodGet, "/api/v1/sync/jobs/"+job.ID.String())

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, job.ID.String(), data["id"])
		assert.Equal(t, string(scheduler.SyncJobStatusPartial), data["status"])
		assert.NotNil(t, data["report"])
	})

	t.Run("unknown", func(t *testing.T) {
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{getErr: scheduler.ErrJobNotFound}, &mockFleetTrigger{}))

		w := serve(r, http.MethodGet, "/api/v1/sync/jobs/"+uuid.New().String())

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{}, &mockFleetTrigger{}))

		w := serve(r, http.MethodGet, "/api/v1/sync/jobs/xyz")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_ListJobs(t *testing.T) {
	history := []scheduler.SyncJob{
		*scheduler.NewSyncJob(uuid.New()),
		*scheduler.NewSyncJob(uuid.New()),
		*scheduler.NewSyncJob(uuid.New()),
	}
	r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{history: history}, &mockFleetTrigger{}))

	w := serve(r, http.MethodGet, "/api/v1/sync/jobs?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w).Data.([]any), 2)

	w = serve(r, http.MethodGet, "/api/v1/sync/jobs?limit=0")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHandler_SyncFleet(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		fleet := &mockFleetTrigger{}
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{}, fleet))

		w := serve(r, http.MethodPost, "/api/v1/sync/fleet")

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, []string{appcommerce.TriggerManual}, fleet.triggers)
	})

	t.Run("already running", func(t *testing.T) {
		fleet := &mockFleetTrigger{err: scheduler.ErrFleetSyncInProgress}
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{}, fleet))

		w := serve(r, http.MethodPost, "/api/v1/sync/fleet")

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("lock backend failure", func(t *testing.T) {
		fleet := &mockFleetTrigger{err: errors.New("redis: connection refused")}
		r := newSyncEngine(NewSyncHandler(&mockTenantSyncer{}, &mockJobQueue{}, fleet))

		w := serve(r, http.MethodPost, "/api/v1/sync/fleet")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
