package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pyneda/consentscan/db"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const staleJobReason = "interrupted: worker restarted"

// jobStore implements the database side of the facade shared by both backends
type jobStore struct {
	conn    *db.DatabaseConnection
	config  Config
	metrics *Metrics
	backend string
}

func (s *jobStore) create(ctx context.Context, spec JobSpec) (*db.ScanJob, error) {
	url := strings.TrimSpace(spec.URL)
	if url == "" {
		return nil, errors.New("url is required")
	}
	locale := spec.Locale
	if locale == "" {
		locale = s.config.DefaultLocale
	}
	job, err := s.conn.CreateScanJob(ctx, &db.ScanJob{
		URL:         url,
		RequestID:   spec.RequestID,
		NotifyEmail: spec.NotifyEmail,
		Locale:      locale,
		Priority:    spec.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("create scan job: %w", err)
	}
	s.metrics.jobEnqueued()
	log.Info().Str("job_id", job.ID).Str("url", job.URL).Int("priority", job.Priority).Str("backend", s.backend).Msg("Scan job queued")
	return job, nil
}

func (s *jobStore) describe(ctx context.Context, job *db.ScanJob) (*JobStatus, error) {
	position := 0
	if job.Status == db.ScanJobStatusQueued {
		var err error
		position, err = s.conn.ScanJobPosition(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("compute queue position: %w", err)
		}
	}
	return statusFromJob(job, position), nil
}

// GetJobStatus returns the current state of a job
func (s *jobStore) GetJobStatus(ctx context.Context, id string) (*JobStatus, error) {
	job, err := s.conn.GetScanJobByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan job: %w", err)
	}
	return s.describe(ctx, job)
}

// CancelJob cancels a job that has not started yet
func (s *jobStore) CancelJob(ctx context.Context, id string) (bool, error) {
	cancelled, err := s.conn.CancelQueuedScanJob(ctx, id)
	if err != nil {
		return false, fmt.Errorf("cancel scan job: %w", err)
	}
	if cancelled {
		log.Info().Str("job_id", id).Msg("Scan job cancelled")
	} else {
		log.Debug().Str("job_id", id).Msg("Scan job not cancellable")
	}
	return cancelled, nil
}

// GetStats returns per-status counts and wait estimates
func (s *jobStore) GetStats(ctx context.Context) (*QueueStats, error) {
	counts, err := s.conn.GetScanJobStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get scan job stats: %w", err)
	}
	s.metrics.setDepth(counts)

	stats := &QueueStats{
		Queued:               counts[db.ScanJobStatusQueued],
		Processing:           counts[db.ScanJobStatusProcessing],
		Completed:            counts[db.ScanJobStatusCompleted],
		Failed:               counts[db.ScanJobStatusFailed],
		Cancelled:            counts[db.ScanJobStatusCancelled],
		MaxConcurrent:        s.config.MaxConcurrent,
		EstimatedJobDuration: s.config.EstimatedJobDuration,
		Backend:              s.backend,
	}
	for _, count := range counts {
		stats.Total += count
	}
	rounds := (stats.Queued + int64(s.config.MaxConcurrent) - 1) / int64(s.config.MaxConcurrent)
	stats.EstimatedWait = s.config.EstimatedJobDuration * time.Duration(rounds)
	return stats, nil
}

// recoverStale fails jobs a previous process left in processing
func (s *jobStore) recoverStale(ctx context.Context) {
	if s.config.StaleAfter <= 0 {
		return
	}
	threshold := s.conn.Now().Add(-s.config.StaleAfter)
	count, err := s.conn.FailStaleProcessingJobs(ctx, threshold, staleJobReason)
	if err != nil {
		log.Error().Err(err).Msg("Failed to recover stale scan jobs")
		return
	}
	if count > 0 {
		log.Warn().Int64("count", count).Dur("stale_after", s.config.StaleAfter).Msg("Failed stale processing scan jobs")
	}
}
