package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a tenant sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
)

// IsActive reports whether the job has not finished yet
func (s SyncJobStatus) IsActive() bool {
	return s == SyncJobStatusPending || s == SyncJobStatusRunning
}

// SyncJob is an asynchronous tenant sync
type SyncJob struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Status      SyncJobStatus
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Report      *appcommerce.TenantSyncReport
}

// NewSyncJob creates a pending job for a tenant
func NewSyncJob(tenantID uuid.UUID) *SyncJob {
	return &SyncJob{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Status:      SyncJobStatusPending,
		SubmittedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the tenant report. A run where some records failed or a
// resource was denied is partial.
func (j *SyncJob) Complete(report *appcommerce.TenantSyncReport) {
	now := time.Now()
	j.CompletedAt = &now
	j.Report = report
	j.Status = SyncJobStatusSuccess
	if report == nil {
		return
	}
	for _, r := range report.Resources {
		if r.Failed > 0 || r.Denied || r.Partial {
			j.Status = SyncJobStatusPartial
			return
		}
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string, report *appcommerce.TenantSyncReport) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
	j.Report = report
}

// TenantSyncer runs one tenant sync
type TenantSyncer interface {
	SyncTenant(ctx context.Context, tenantID uuid.UUID) (*appcommerce.TenantSyncReport, error)
}

// ---------------------------------------------------------------------------
// SyncJobSchedulerConfig
// ---------------------------------------------------------------------------

// SyncJobSchedulerConfig holds configuration for the job scheduler
type SyncJobSchedulerConfig struct {
	// MaxConcurrentJobs is the maximum number of concurrent sync jobs
	MaxConcurrentJobs int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// QueueSize bounds the number of pending jobs
	QueueSize int
	// MaxHistory bounds the number of finished jobs kept for lookup
	MaxHistory int
}

// DefaultSyncJobSchedulerConfig returns default configuration
func DefaultSyncJobSchedulerConfig() SyncJobSchedulerConfig {
	return SyncJobSchedulerConfig{
		MaxConcurrentJobs: 3,
		JobTimeout:        30 * time.Minute,
		QueueSize:         100,
		MaxHistory:        100,
	}
}

// SyncJobSchedulerConfigFrom builds the job scheduler configuration from app config
func SyncJobSchedulerConfigFrom(cfg config.SchedulerConfig) SyncJobSchedulerConfig {
	c := DefaultSyncJobSchedulerConfig()
	if cfg.MaxConcurrentJobs > 0 {
		c.MaxConcurrentJobs = cfg.MaxConcurrentJobs
	}
	if cfg.JobTimeout > 0 {
		c.JobTimeout = cfg.JobTimeout
	}
	return c
}

// Validate validates the configuration
func (c *SyncJobSchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 || c.MaxHistory <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncJobScheduler
// ---------------------------------------------------------------------------

// SyncJobScheduler runs on-demand tenant syncs on a worker pool. A tenant has
// at most one pending or running job.
type SyncJobScheduler struct {
	config SyncJobSchedulerConfig
	syncer TenantSyncer
	logger *zap.Logger

	queue     chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool

	// mu guards every job's fields as well as the indexes below
	mu      sync.Mutex
	jobs    map[uuid.UUID]*SyncJob
	active  map[uuid.UUID]uuid.UUID // tenant -> job
	history []uuid.UUID             // finished jobs, newest first
}

// NewSyncJobScheduler creates a new job scheduler
func NewSyncJobScheduler(config SyncJobSchedulerConfig, syncer TenantSyncer, logger *zap.Logger) (*SyncJobScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncJobScheduler{
		config:  config,
		syncer:  syncer,
		logger:  logger,
		queue:   make(chan *SyncJob, config.QueueSize),
		jobs:    make(map[uuid.UUID]*SyncJob),
		active:  make(map[uuid.UUID]uuid.UUID),
		history: make([]uuid.UUID, 0, config.MaxHistory),
	}, nil
}

// Start starts the worker pool
func (s *SyncJobScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync job scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *SyncJobScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.queue)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync job scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync job scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a sync for the tenant and returns a snapshot of the new job
func (s *SyncJobScheduler) Submit(tenantID uuid.UUID) (SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return SyncJob{}, ErrSchedulerNotRunning
	}
	if _, busy := s.active[tenantID]; busy {
		return SyncJob{}, ErrSyncAlreadyInProgress
	}

	job := NewSyncJob(tenantID)
	select {
	case s.queue <- job:
	default:
		return SyncJob{}, ErrJobQueueFull
	}
	s.jobs[job.ID] = job
	s.active[tenantID] = job.ID

	s.logger.Debug("Sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return *job, nil
}

// GetJob returns a snapshot of a known job
func (s *SyncJobScheduler) GetJob(id uuid.UUID) (SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return SyncJob{}, ErrJobNotFound
	}
	return *job, nil
}

// GetJobHistory returns snapshots of recently finished jobs, newest first
func (s *SyncJobScheduler) GetJobHistory(limit int) []SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]SyncJob, 0, limit)
	for _, id := range s.history[:limit] {
		result = append(result, *s.jobs[id])
	}
	return result
}

func (s *SyncJobScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.queue:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncJobScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	s.mu.Lock()
	job.Start()
	s.mu.Unlock()

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
	)
	log.Info("Processing sync job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	report, err := s.syncer.SyncTenant(jobCtx, job.TenantID)

	s.mu.Lock()
	if err != nil {
		job.Fail(err.Error(), report)
	} else {
		job.Complete(report)
	}
	status := job.Status
	s.finish(job)
	s.mu.Unlock()

	if err != nil {
		log.Error("Sync job failed", zap.Error(err))
		return
	}
	log.Info("Sync job completed", zap.String("status", string(status)))
}

// finish moves a job from the active index to history. Callers hold s.mu.
func (s *SyncJobScheduler) finish(job *SyncJob) {
	delete(s.active, job.TenantID)

	s.history = append([]uuid.UUID{job.ID}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		for _, id := range s.history[s.config.MaxHistory:] {
			delete(s.jobs, id)
		}
		s.history = s.history[:s.config.MaxHistory]
	}
}
