package queue

import (
	"context"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/scan/worker"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// JobRunner executes a job that is already processing
type JobRunner interface {
	Execute(ctx context.Context, job *db.ScanJob) worker.Outcome
}

// PollingQueue claims jobs straight from the database. Concurrency is bounded
// by the claim itself, which only succeeds below the processing limit.
type PollingQueue struct {
	*jobStore
	runner JobRunner
	loop   *worker.Loop
	jobs   conc.WaitGroup
}

// NewPollingQueue creates a stopped database backed queue
func NewPollingQueue(conn *db.DatabaseConnection, runner JobRunner, config Config, metrics *Metrics) *PollingQueue {
	config = config.withDefaults()
	q := &PollingQueue{
		jobStore: &jobStore{conn: conn, config: config, metrics: metrics, backend: BackendDatabase},
		runner:   runner,
	}
	q.loop = worker.NewLoop("database-queue", config.PollInterval, q.tick)
	return q
}

// AddJob inserts a queued job and wakes the worker
func (q *PollingQueue) AddJob(ctx context.Context, spec JobSpec) (*JobStatus, error) {
	job, err := q.create(ctx, spec)
	if err != nil {
		return nil, err
	}
	q.loop.Wake()
	return q.describe(ctx, job)
}

// Start recovers stale jobs and starts the worker loop
func (q *PollingQueue) Start() error {
	q.recoverStale(context.Background())
	q.loop.Start()
	return nil
}

// Stop stops claiming and waits for running jobs to finish
func (q *PollingQueue) Stop() {
	q.loop.Stop()
	q.jobs.Wait()
}

func (q *PollingQueue) tick(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := q.conn.ClaimNextScanJob(ctx, q.config.MaxConcurrent)
		if err != nil {
			log.Error().Err(err).Msg("Failed to claim scan job")
			return
		}
		if job == nil {
			return
		}
		q.jobs.Go(func() {
			// processing jobs are not cancelled by Stop
			outcome := q.runner.Execute(context.Background(), job)
			q.metrics.jobFinished(outcome)
			q.loop.Wake()
		})
	}
}
