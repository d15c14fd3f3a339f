package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/cache"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type fakeFleet struct {
	calls    atomic.Int32
	triggers chan string
	release  chan struct{}
	err      error
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{triggers: make(chan string, 10)}
}

func (f *fakeFleet) SyncFleet(ctx context.Context, trigger string) (*appcommerce.FleetSyncReport, error) {
	f.calls.Add(1)
	f.triggers <- trigger
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &appcommerce.FleetSyncReport{Succeeded: 2}, nil
}

func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, 5, 1, hour, minute, 30, 0, time.Local)
	}
}

// ---------------------------------------------------------------------------
// SyncCronTrigger Tests
// ---------------------------------------------------------------------------

func TestSyncCronTriggerConfigFrom(t *testing.T) {
	cfg := SyncCronTriggerConfigFrom(config.SchedulerConfig{DailyHour: 3, DailyMinute: 15})

	assert.Equal(t, 3, cfg.DailyHour)
	assert.Equal(t, 15, cfg.DailyMinute)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.Equal(t, 2*time.Hour, cfg.LockTTL)
}

func TestSyncCronTrigger_RunsOncePerDayAtConfiguredTime(t *testing.T) {
	fleet := newFakeFleet()
	trigger := NewSyncCronTrigger(DefaultSyncCronTriggerConfig(), fleet, cache.NewInMemoryRunLock(), newTestLogger())

	trigger.now = fixedClock(1, 59)
	assert.False(t, trigger.checkAndTrigger(context.Background()))

	trigger.now = fixedClock(2, 0)
	assert.True(t, trigger.checkAndTrigger(context.Background()))
	assert.False(t, trigger.checkAndTrigger(context.Background()), "second check on the same day")

	assert.Equal(t, int32(1), fleet.calls.Load())
	assert.Equal(t, appcommerce.TriggerScheduled, <-fleet.triggers)
	assert.Equal(t, "2024-05-01", trigger.LastRunDate())
}

func TestSyncCronTrigger_SkipsWhenLockIsHeld(t *testing.T) {
	fleet := newFakeFleet()
	locks := cache.NewInMemoryRunLock()
	ok, err := locks.TryAcquire(context.Background(), FleetLockName, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	trigger := NewSyncCronTrigger(DefaultSyncCronTriggerConfig(), fleet, locks, newTestLogger())
	trigger.now = fixedClock(2, 0)
	assert.True(t, trigger.checkAndTrigger(context.Background()))
	assert.Zero(t, fleet.calls.Load())

	_, err = trigger.RunNow(context.Background(), appcommerce.TriggerFleet)
	assert.ErrorIs(t, err, ErrFleetSyncInProgress)
}

func TestSyncCronTrigger_RunNowReleasesLock(t *testing.T) {
	fleet := newFakeFleet()
	trigger := NewSyncCronTrigger(DefaultSyncCronTriggerConfig(), fleet, cache.NewInMemoryRunLock(), newTestLogger())

	report, err := trigger.RunNow(context.Background(), appcommerce.TriggerFleet)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)

	fleet.err = errors.New("list tenants: connection refused")
	_, err = trigger.RunNow(context.Background(), appcommerce.TriggerFleet)
	assert.Error(t, err)

	// the failed run released the lock too
	fleet.err = nil
	_, err = trigger.RunNow(context.Background(), appcommerce.TriggerFleet)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fleet.calls.Load())
}

func TestSyncCronTrigger_TriggerAsyncIsSingleFlight(t *testing.T) {
	fleet := newFakeFleet()
	fleet.release = make(chan struct{})
	trigger := NewSyncCronTrigger(DefaultSyncCronTriggerConfig(), fleet, cache.NewInMemoryRunLock(), newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, trigger.TriggerAsync(ctx, appcommerce.TriggerFleet))
	// the run outlives the request context
	cancel()

	select {
	case got := <-fleet.triggers:
		assert.Equal(t, appcommerce.TriggerFleet, got)
	case <-time.After(2 * time.Second):
		t.Fatal("fleet sync did not start")
	}

	assert.ErrorIs(t, trigger.TriggerAsync(context.Background(), appcommerce.TriggerFleet), ErrFleetSyncInProgress)

	close(fleet.release)
	require.Eventually(t, func() bool {
		return trigger.TriggerAsync(context.Background(), appcommerce.TriggerFleet) == nil
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	trigger.wg.Wait()
	assert.NoError(t, trigger.Stop(stopCtx))
}

func TestSyncCronTrigger_StartStop(t *testing.T) {
	trigger := NewSyncCronTrigger(DefaultSyncCronTriggerConfig(), newFakeFleet(), cache.NewInMemoryRunLock(), newTestLogger())

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))
}
