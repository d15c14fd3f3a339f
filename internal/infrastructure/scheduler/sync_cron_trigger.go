package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// FleetLockName is the run lock held for the duration of a fleet sync
const FleetLockName = "fleet-sync"

// FleetSyncer runs a sync over every connected tenant
type FleetSyncer interface {
	SyncFleet(ctx context.Context, trigger string) (*appcommerce.FleetSyncReport, error)
}

// SyncCronTriggerConfig holds configuration for the fleet sync trigger
type SyncCronTriggerConfig struct {
	// DailyHour and DailyMinute are the local time of the daily run (24h)
	DailyHour   int
	DailyMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// LockTTL bounds how long a run holds the fleet lock
	LockTTL time.Duration
}

// DefaultSyncCronTriggerConfig returns default trigger configuration
func DefaultSyncCronTriggerConfig() SyncCronTriggerConfig {
	return SyncCronTriggerConfig{
		DailyHour:     2,
		DailyMinute:   0,
		CheckInterval: time.Minute,
		LockTTL:       2 * time.Hour,
	}
}

// SyncCronTriggerConfigFrom builds the trigger configuration from app config
func SyncCronTriggerConfigFrom(cfg config.SchedulerConfig) SyncCronTriggerConfig {
	c := DefaultSyncCronTriggerConfig()
	c.DailyHour = cfg.DailyHour
	c.DailyMinute = cfg.DailyMinute
	if cfg.CheckInterval > 0 {
		c.CheckInterval = cfg.CheckInterval
	}
	if cfg.LockTTL > 0 {
		c.LockTTL = cfg.LockTTL
	}
	return c
}

// SyncCronTrigger starts the daily fleet sync. At most one fleet run is in
// flight at a time across every instance sharing the run lock.
type SyncCronTrigger struct {
	config SyncCronTriggerConfig
	fleet  FleetSyncer
	locks  shared.RunLock
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewSyncCronTrigger creates a new fleet sync trigger
func NewSyncCronTrigger(
	config SyncCronTriggerConfig,
	fleet FleetSyncer,
	locks shared.RunLock,
	logger *zap.Logger,
) *SyncCronTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncCronTrigger{
		config: config,
		fleet:  fleet,
		locks:  locks,
		logger: logger,
		now:    time.Now,
	}
}

// Start starts the trigger loop
func (c *SyncCronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Fleet sync trigger started",
		zap.Int("daily_hour", c.config.DailyHour),
		zap.Int("daily_minute", c.config.DailyMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger loop and waits for an in-flight run to return
func (c *SyncCronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Fleet sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SyncCronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the fleet sync when the daily time is reached and it
// has not run yet today. It reports whether a run was attempted.
func (c *SyncCronTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return false
	}
	if now.Hour() != c.config.DailyHour || now.Minute() != c.config.DailyMinute {
		c.mu.Unlock()
		return false
	}
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering scheduled fleet sync")
	if _, err := c.RunNow(ctx, appcommerce.TriggerScheduled); err != nil {
		if errors.Is(err, ErrFleetSyncInProgress) {
			c.logger.Info("Skipping scheduled fleet sync, another run holds the lock")
		} else {
			c.logger.Error("Scheduled fleet sync failed", zap.Error(err))
		}
	}
	return true
}

// RunNow runs a fleet sync synchronously under the run lock. It returns
// ErrFleetSyncInProgress without syncing when the lock is held elsewhere.
func (c *SyncCronTrigger) RunNow(ctx context.Context, trigger string) (*appcommerce.FleetSyncReport, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	return c.runLocked(ctx, trigger)
}

// TriggerAsync takes the run lock and starts a fleet sync in the background.
// The run is detached from ctx so it outlives the request that started it.
func (c *SyncCronTrigger) TriggerAsync(ctx context.Context, trigger string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}

	runCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.runLocked(runCtx, trigger); err != nil {
			c.logger.Error("Fleet sync failed", zap.String("trigger", trigger), zap.Error(err))
		}
	}()
	return nil
}

func (c *SyncCronTrigger) acquire(ctx context.Context) error {
	ok, err := c.locks.TryAcquire(ctx, FleetLockName, c.config.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFleetSyncInProgress
	}
	return nil
}

// runLocked runs the fleet sync and releases the lock afterwards
func (c *SyncCronTrigger) runLocked(ctx context.Context, trigger string) (*appcommerce.FleetSyncReport, error) {
	defer func() {
		if err := c.locks.Release(context.WithoutCancel(ctx), FleetLockName); err != nil {
			c.logger.Warn("Failed to release fleet sync lock", zap.Error(err))
		}
	}()

	report, err := c.fleet.SyncFleet(ctx, trigger)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Fleet sync finished",
		zap.String("trigger", trigger),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// LastRunDate returns the date of the last scheduled run, empty if none
func (c *SyncCronTrigger) LastRunDate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRunDate
}
