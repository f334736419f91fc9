package queue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/scan/worker"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Delivery is one dispatched job id awaiting acknowledgement
type Delivery interface {
	JobID() string
	Ack() error
	Nak() error
	Term() error
	InProgress() error
}

// Dispatcher hands job ids to workers in priority order
type Dispatcher interface {
	// Publish fails for priorities outside [0, MaxPriority()]
	Publish(ctx context.Context, jobID string, priority int) error
	// MaxPriority is the highest priority the dispatcher orders distinctly
	MaxPriority() int
	// Fetch returns up to max deliveries, most urgent first, and may return
	// none without error.
	Fetch(ctx context.Context, max int) ([]Delivery, error)
	// AckWait is how long a delivery may stay unacknowledged before redelivery
	AckWait() time.Duration
	Close() error
}

// DispatchQueue delegates ordering to an external dispatcher while the
// database stays the source of job status. Positions and stats read from
// the database are estimates of the dispatcher's real order.
type DispatchQueue struct {
	*jobStore
	dispatcher Dispatcher
	runner     JobRunner
	loop       *worker.Loop
	jobs       conc.WaitGroup
	inflight   atomic.Int32
}

// NewDispatchQueue creates a stopped dispatcher backed queue
func NewDispatchQueue(conn *db.DatabaseConnection, dispatcher Dispatcher, runner JobRunner, config Config, metrics *Metrics) *DispatchQueue {
	config = config.withDefaults()
	q := &DispatchQueue{
		jobStore:   &jobStore{conn: conn, config: config, metrics: metrics, backend: BackendJetStream},
		dispatcher: dispatcher,
		runner:     runner,
	}
	q.loop = worker.NewLoop("dispatch-queue", config.PollInterval, q.tick)
	return q
}

// AddJob inserts a queued job and publishes it. Priorities the dispatcher
// cannot order are rejected before anything is stored. A job that cannot be
// published is cancelled so it never looks runnable.
func (q *DispatchQueue) AddJob(ctx context.Context, spec JobSpec) (*JobStatus, error) {
	if max := q.dispatcher.MaxPriority(); spec.Priority < 0 || spec.Priority > max {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrPriorityOutOfRange, spec.Priority, max)
	}
	job, err := q.create(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := q.dispatcher.Publish(ctx, job.ID, job.Priority); err != nil {
		reason := fmt.Sprintf("dispatch failed: %v", err)
		if _, cancelErr := q.conn.CancelQueuedScanJobWithError(ctx, job.ID, reason); cancelErr != nil {
			log.Error().Err(cancelErr).Str("job_id", job.ID).Msg("Failed to cancel undispatched scan job")
		}
		return nil, fmt.Errorf("publish scan job %s: %w", job.ID, err)
	}
	q.loop.Wake()
	return q.describe(ctx, job)
}

// Start recovers stale jobs and starts fetching deliveries
func (q *DispatchQueue) Start() error {
	q.recoverStale(context.Background())
	q.loop.Start()
	return nil
}

// Stop stops fetching and waits for running jobs to finish
func (q *DispatchQueue) Stop() {
	q.loop.Stop()
	q.jobs.Wait()
}

// Close releases the dispatcher connection
func (q *DispatchQueue) Close() error {
	return q.dispatcher.Close()
}

// Running returns the number of jobs this process is executing
func (q *DispatchQueue) Running() int {
	return int(q.inflight.Load())
}

func (q *DispatchQueue) tick(ctx context.Context) {
	free := q.config.MaxConcurrent - int(q.inflight.Load())
	if free <= 0 {
		return
	}
	deliveries, err := q.dispatcher.Fetch(ctx, free)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch scan job deliveries")
	}
	for _, delivery := range deliveries {
		q.handle(ctx, delivery)
	}
}

func (q *DispatchQueue) handle(ctx context.Context, delivery Delivery) {
	jobID := delivery.JobID()
	job, err := q.conn.MarkScanJobProcessing(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to start dispatched scan job")
		if nakErr := delivery.Nak(); nakErr != nil {
			log.Warn().Err(nakErr).Str("job_id", jobID).Msg("Failed to nak delivery")
		}
		return
	}
	if job == nil {
		log.Debug().Str("job_id", jobID).Msg("Dropping delivery for a job that is no longer queued")
		if termErr := delivery.Term(); termErr != nil {
			log.Warn().Err(termErr).Str("job_id", jobID).Msg("Failed to terminate delivery")
		}
		return
	}

	q.inflight.Add(1)
	q.jobs.Go(func() {
		defer q.inflight.Add(-1)
		stop := q.heartbeat(delivery)
		outcome := q.runner.Execute(context.Background(), job)
		stop()
		if err := delivery.Ack(); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to ack delivery")
		}
		q.metrics.jobFinished(outcome)
		q.loop.Wake()
	})
}

// heartbeat keeps a delivery from being redelivered while its job runs
func (q *DispatchQueue) heartbeat(delivery Delivery) func() {
	interval := q.dispatcher.AckWait() / 2
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := delivery.InProgress(); err != nil {
					log.Warn().Err(err).Str("job_id", delivery.JobID()).Msg("Failed to extend delivery")
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
