package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Progress checkpoints reported while a job runs
const (
	ProgressInitializing = 5
	ProgressLoading      = 10
	ProgressSaving       = 90
)

// Scanner produces the result for one URL
type Scanner interface {
	Run(ctx context.Context, url string) (*report.ScanResult, error)
}

// ReportWriter persists a finished result and returns the report id
type ReportWriter interface {
	SaveScanResult(ctx context.Context, result *report.ScanResult, requestID *string) (string, error)
}

// JobStore records job progress and terminal states
type JobStore interface {
	UpdateScanJobProgress(ctx context.Context, id string, progress int, step string) (bool, error)
	MarkScanJobCompleted(ctx context.Context, id string, reportID string) (bool, error)
	MarkScanJobFailed(ctx context.Context, id string, errorMsg string) (bool, error)
}

// Notifier is told about jobs reaching a terminal state
type Notifier interface {
	Notify(ctx context.Context, job *db.ScanJob, status db.ScanJobStatus)
}

// LogNotifier logs the notification that would be sent to the job's address
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, job *db.ScanJob, status db.ScanJobStatus) {
	if job.NotifyEmail == nil || *job.NotifyEmail == "" {
		return
	}
	event := log.Info()
	if status == db.ScanJobStatusFailed {
		event = log.Warn()
	}
	event.Str("job_id", job.ID).Str("url", job.URL).Str("status", string(status)).Str("locale", job.Locale).Msg("Scan notification pending delivery")
}

// Outcome describes how a job execution ended. Status is processing when the
// store could not record the terminal state.
type Outcome struct {
	Status   db.ScanJobStatus
	ReportID string
	Duration time.Duration
	Err      error
}

// RunnerConfig holds the dependencies of a Runner
type RunnerConfig struct {
	Store    JobStore
	Scanner  Scanner
	Reports  ReportWriter
	Notifier Notifier
}

// Runner executes claimed jobs. Jobs are never retried.
type Runner struct {
	store    JobStore
	scanner  Scanner
	reports  ReportWriter
	notifier Notifier
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	return &Runner{
		store:    cfg.Store,
		scanner:  cfg.Scanner,
		reports:  cfg.Reports,
		notifier: cfg.Notifier,
	}
}

// Execute runs a job that is already in processing state through to completed
// or failed. Panics raised by the scan are turned into failures.
func (r *Runner) Execute(ctx context.Context, job *db.ScanJob) (outcome Outcome) {
	started := time.Now()
	jobLog := log.With().Str("job_id", job.ID).Str("url", job.URL).Int("priority", job.Priority).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			jobLog.Error().Interface("panic", rec).Msg("Scan job panicked")
			outcome = r.fail(ctx, job, fmt.Errorf("panic: %v", rec), jobLog)
		}
		outcome.Duration = time.Since(started)
	}()

	jobLog.Info().Msg("Processing scan job")
	r.checkpoint(ctx, job, ProgressInitializing, "initializing", jobLog)
	r.checkpoint(ctx, job, ProgressLoading, "loading", jobLog)

	result, err := r.scanner.Run(ctx, job.URL)
	if err != nil {
		return r.fail(ctx, job, err, jobLog)
	}

	r.checkpoint(ctx, job, ProgressSaving, "saving", jobLog)
	reportID, err := r.reports.SaveScanResult(ctx, result, job.RequestID)
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("save report: %w", err), jobLog)
	}

	updated, err := r.store.MarkScanJobCompleted(ctx, job.ID, reportID)
	if err != nil {
		jobLog.Error().Err(err).Str("report_id", reportID).Msg("Failed to mark scan job as completed")
		return Outcome{Status: db.ScanJobStatusProcessing, ReportID: reportID, Err: err}
	}
	if !updated {
		jobLog.Warn().Msg("Scan job was no longer processing when completing it")
	}
	jobLog.Info().Str("report_id", reportID).Int("score", result.Score).Str("risk", result.RiskLevel.String()).Msg("Scan job completed")
	r.notifier.Notify(ctx, job, db.ScanJobStatusCompleted)
	return Outcome{Status: db.ScanJobStatusCompleted, ReportID: reportID}
}

func (r *Runner) checkpoint(ctx context.Context, job *db.ScanJob, progress int, step string, jobLog zerolog.Logger) {
	if _, err := r.store.UpdateScanJobProgress(ctx, job.ID, progress, step); err != nil {
		jobLog.Warn().Err(err).Int("progress", progress).Str("step", step).Msg("Failed to update scan job progress")
	}
}

func (r *Runner) fail(ctx context.Context, job *db.ScanJob, cause error, jobLog zerolog.Logger) Outcome {
	jobLog.Warn().Err(cause).Msg("Scan job failed")
	updated, err := r.store.MarkScanJobFailed(ctx, job.ID, cause.Error())
	if err != nil {
		jobLog.Error().Err(err).Msg("Failed to mark scan job as failed")
		return Outcome{Status: db.ScanJobStatusProcessing, Err: err}
	}
	if !updated {
		jobLog.Warn().Msg("Scan job was no longer processing when failing it")
	}
	r.notifier.Notify(ctx, job, db.ScanJobStatusFailed)
	return Outcome{Status: db.ScanJobStatusFailed, Err: cause}
}
