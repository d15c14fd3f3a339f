package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSyncAlreadyInProgress is returned when a tenant already has a pending or running job
	ErrSyncAlreadyInProgress = errors.New("sync already in progress for this tenant")

	// ErrFleetSyncInProgress is returned when another fleet run holds the run lock
	ErrFleetSyncInProgress = errors.New("fleet sync already in progress")
)
