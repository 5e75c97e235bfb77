// Package worker runs background jobs for committed orders.
//
// Jobs are queued in memory and processed with bounded concurrency. A failed
// job is retried with exponential backoff until its retry budget runs out or
// the failure is marked permanent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/tabletill/internal/history"
	"github.com/dukerupert/tabletill/internal/jobs"
	"github.com/dukerupert/tabletill/internal/telemetry"
)

// ErrQueueFull is returned when the queue cannot accept another job.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned when enqueuing after shutdown started.
var ErrStopped = errors.New("worker is stopped")

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// QueueSize is how many jobs may wait for a free slot
	QueueSize int

	// MaxRetries caps retries for jobs that do not set their own limit
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per attempt
	RetryBackoff time.Duration

	// MaxBackoff caps the retry delay
	MaxBackoff time.Duration

	// JobTimeout applies to jobs that do not set their own timeout
	JobTimeout time.Duration
}

// Worker processes background jobs
type Worker struct {
	config    Config
	queue     chan *jobs.Job
	api       jobs.OrderAPI
	publisher history.Publisher
	metrics   *telemetry.BusinessMetrics
	logger    *zerolog.Logger

	mu       sync.Mutex
	stopped  bool
	inFlight sync.WaitGroup
	retries  sync.WaitGroup
	done     chan struct{}
}

var _ jobs.Enqueuer = (*Worker)(nil)

// NewWorker creates a new background job worker
func NewWorker(
	api jobs.OrderAPI,
	publisher history.Publisher,
	config Config,
	metrics *telemetry.BusinessMetrics,
	logger *zerolog.Logger,
) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = time.Minute
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	if publisher == nil {
		publisher = history.NopPublisher{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Worker{
		config:    config,
		queue:     make(chan *jobs.Job, config.QueueSize),
		api:       api,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// EnqueueJob queues a job without blocking.
func (w *Worker) EnqueueJob(ctx context.Context, params jobs.EnqueueJobParams) (*jobs.Job, error) {
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = w.config.MaxRetries
	}

	job := &jobs.Job{
		ID:             uuid.New(),
		JobType:        params.JobType,
		Queue:          params.Queue,
		Payload:        params.Payload,
		MaxRetries:     maxRetries,
		TimeoutSeconds: params.TimeoutSeconds,
		ScheduledAt:    time.Now(),
	}

	if err := w.push(job); err != nil {
		return nil, err
	}

	if w.metrics != nil {
		w.metrics.JobsEnqueued.WithLabelValues(job.JobType).Inc()
	}
	w.logger.Debug().
		Str("job_id", job.ID.String()).
		Str("job_type", job.JobType).
		Msg("job enqueued")
	return job, nil
}

func (w *Worker) push(job *jobs.Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start processes jobs until ctx is cancelled, then waits for in-flight jobs
// to finish. Jobs still waiting in the queue at that point are dropped.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Str("worker_id", w.config.WorkerID).
		Int("max_concurrency", w.config.MaxConcurrency).
		Int("queue_size", w.config.QueueSize).
		Msg("worker starting")

	defer close(w.done)

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return ctx.Err()

		case job := <-w.queue:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				w.requeueOrDrop(job)
				w.shutdown()
				return ctx.Err()
			}

			w.inFlight.Add(1)
			go func() {
				defer w.inFlight.Done()
				defer func() { <-sem }()
				w.run(ctx, job)
			}()
		}
	}
}

// Done is closed once Start has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) shutdown() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.logger.Info().Str("worker_id", w.config.WorkerID).Msg("worker shutting down")
	w.inFlight.Wait()
	w.retries.Wait()

	if dropped := len(w.queue); dropped > 0 {
		w.logger.Warn().Int("dropped", dropped).Msg("jobs left in queue at shutdown")
	}
}

func (w *Worker) requeueOrDrop(job *jobs.Job) {
	select {
	case w.queue <- job:
	default:
		w.logger.Warn().Str("job_id", job.ID.String()).Str("job_type", job.JobType).Msg("job dropped at shutdown")
	}
}

// run processes one job and schedules a retry when it fails.
func (w *Worker) run(ctx context.Context, job *jobs.Job) {
	log := w.logger.With().
		Str("job_id", job.ID.String()).
		Str("job_type", job.JobType).
		Int("retry_count", job.RetryCount).
		Logger()

	log.Info().Msg("processing job")
	start := time.Now()

	err := w.processJob(ctx, job)

	if w.metrics != nil {
		w.metrics.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())
	}

	if err == nil {
		log.Info().Dur("duration", time.Since(start)).Msg("job completed")
		if w.metrics != nil {
			w.metrics.JobsProcessed.WithLabelValues(job.JobType).Inc()
		}
		return
	}

	if jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries {
		log.Error().Err(err).Msg("job failed")
		if w.metrics != nil {
			w.metrics.JobsFailed.WithLabelValues(job.JobType, "exhausted").Inc()
		}
		return
	}

	delay := w.backoff(job.RetryCount)
	log.Warn().Err(err).Dur("retry_in", delay).Msg("job failed, retrying")
	if w.metrics != nil {
		w.metrics.JobsFailed.WithLabelValues(job.JobType, "retry").Inc()
	}

	job.RetryCount++
	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			if err := w.push(job); err != nil {
				log.Error().Err(err).Msg("job could not be requeued")
			}
		case <-ctx.Done():
			log.Warn().Msg("retry abandoned at shutdown")
		}
	}()
}

// processJob processes a single job
func (w *Worker) processJob(ctx context.Context, job *jobs.Job) error {
	// In-flight jobs finish even when shutdown starts.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), job.Timeout(w.config.JobTimeout))
	defer cancel()

	switch job.JobType {
	case jobs.JobTypePersistOrderPricing:
		result, err := jobs.ProcessPersistJob(jobCtx, job, w.api, w)
		if result != nil {
			w.logger.Info().
				Str("order_id", result.OrderID).
				Bool("created", result.Created).
				Int("items_added", result.ItemsAdded).
				Int("items_updated", result.ItemsUpdated).
				Int("items_removed", result.ItemsRemoved).
				Msg("order pricing persisted")
		}
		return err

	case jobs.JobTypePublishOrderChanges:
		published, err := jobs.ProcessHistoryJob(jobCtx, job, w.publisher)
		if err == nil && w.metrics != nil {
			for _, c := range published {
				w.metrics.ChangesPublished.WithLabelValues(string(c.Action)).Inc()
			}
		}
		return err

	default:
		return jobs.Permanent(fmt.Errorf("unknown job type: %s", job.JobType))
	}
}

func (w *Worker) backoff(retry int) time.Duration {
	d := w.config.RetryBackoff
	for i := 0; i < retry && d < w.config.MaxBackoff; i++ {
		d *= 2
	}
	if d > w.config.MaxBackoff {
		d = w.config.MaxBackoff
	}
	return d
}
