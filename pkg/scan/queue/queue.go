// Package queue exposes the scan job facade used by the API and CLI, backed
// either by database polling or by a JetStream dispatcher.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/pyneda/consentscan/db"
	"github.com/spf13/viper"
)

// Backend names accepted by queue.backend
const (
	BackendDatabase  = "database"
	BackendJetStream = "jetstream"
)

// ErrJobNotFound is returned when a job id does not exist
var ErrJobNotFound = errors.New("scan job not found")

// ErrPriorityOutOfRange is returned by backends that only order a bounded
// priority range
var ErrPriorityOutOfRange = errors.New("priority out of range")

// JobSpec describes a scan request to enqueue
type JobSpec struct {
	URL         string  `json:"url"`
	RequestID   *string `json:"request_id,omitempty"`
	NotifyEmail *string `json:"notify_email,omitempty"`
	Locale      string  `json:"locale,omitempty"`
	Priority    int     `json:"priority,omitempty"`
}

// JobStatus is the externally visible state of a job. Position is only set
// while the job is queued.
type JobStatus struct {
	ID          string           `json:"id"`
	URL         string           `json:"url"`
	Status      db.ScanJobStatus `json:"status"`
	Priority    int              `json:"priority"`
	Locale      string           `json:"locale"`
	Progress    int              `json:"progress"`
	CurrentStep string           `json:"current_step,omitempty"`
	Position    int              `json:"position,omitempty"`
	RequestID   *string          `json:"request_id,omitempty"`
	ReportID    *string          `json:"report_id,omitempty"`
	Error       *string          `json:"error,omitempty"`
	QueuedAt    time.Time        `json:"queued_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// QueueStats summarises the queue. EstimatedWait is a display hint only.
type QueueStats struct {
	Queued               int64         `json:"queued"`
	Processing           int64         `json:"processing"`
	Completed            int64         `json:"completed"`
	Failed               int64         `json:"failed"`
	Cancelled            int64         `json:"cancelled"`
	Total                int64         `json:"total"`
	MaxConcurrent        int           `json:"max_concurrent"`
	EstimatedJobDuration time.Duration `json:"estimated_job_duration"`
	EstimatedWait        time.Duration `json:"estimated_wait"`
	Backend              string        `json:"backend"`
}

// JobQueue is the facade consumed by request handling code.
// Implementations must be safe for concurrent use.
type JobQueue interface {
	// AddJob inserts a queued job and wakes the worker without waiting for it.
	AddJob(ctx context.Context, spec JobSpec) (*JobStatus, error)

	// GetJobStatus returns ErrJobNotFound for unknown ids.
	GetJobStatus(ctx context.Context, id string) (*JobStatus, error)

	// CancelJob returns true only when a queued job was cancelled.
	CancelJob(ctx context.Context, id string) (bool, error)

	GetStats(ctx context.Context) (*QueueStats, error)

	// Start launches the worker loop. Stop waits for running jobs to finish.
	Start() error
	Stop()
}

// Config holds the settings shared by both backends
type Config struct {
	Backend              string
	MaxConcurrent        int
	PollInterval         time.Duration
	EstimatedJobDuration time.Duration
	DefaultLocale        string
	StaleAfter           time.Duration
}

// ConfigFromViper reads the queue.* settings
func ConfigFromViper() Config {
	return Config{
		Backend:              viper.GetString("queue.backend"),
		MaxConcurrent:        viper.GetInt("queue.max_concurrent"),
		PollInterval:         viper.GetDuration("queue.poll_interval"),
		EstimatedJobDuration: viper.GetDuration("queue.estimated_job_duration"),
		DefaultLocale:        viper.GetString("queue.default_locale"),
		StaleAfter:           viper.GetDuration("queue.recovery.stale_after"),
	}
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendDatabase
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.EstimatedJobDuration <= 0 {
		c.EstimatedJobDuration = 45 * time.Second
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en"
	}
	return c
}

func statusFromJob(job *db.ScanJob, position int) *JobStatus {
	status := &JobStatus{
		ID:          job.ID,
		URL:         job.URL,
		Status:      job.Status,
		Priority:    job.Priority,
		Locale:      job.Locale,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		RequestID:   job.RequestID,
		ReportID:    job.ReportID,
		Error:       job.Error,
		QueuedAt:    job.QueuedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == db.ScanJobStatusQueued {
		status.Position = position
	}
	return status
}
