package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is a unit of background work.
type Job struct {
	ID             uuid.UUID
	JobType        string
	Queue          string
	Payload        []byte
	MaxRetries     int
	RetryCount     int
	TimeoutSeconds int
	ScheduledAt    time.Time
}

// Timeout returns the job's execution limit, or fallback when none is set.
func (j *Job) Timeout(fallback time.Duration) time.Duration {
	if j.TimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// EnqueueJobParams describes a job to enqueue.
type EnqueueJobParams struct {
	JobType        string
	Queue          string
	Payload        []byte
	MaxRetries     int
	TimeoutSeconds int
}

// Enqueuer accepts jobs for background processing.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, params EnqueueJobParams) (*Job, error)
}

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// Permanent wraps err so that the worker does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
