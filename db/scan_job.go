package db

import (
	"context"
	"fmt"
	"time"

	"github.com/pyneda/consentscan/lib"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanJobStatus represents the status of a scan job
type ScanJobStatus string

const (
	ScanJobStatusQueued     ScanJobStatus = "queued"
	ScanJobStatusProcessing ScanJobStatus = "processing"
	ScanJobStatusCompleted  ScanJobStatus = "completed"
	ScanJobStatusFailed     ScanJobStatus = "failed"
	ScanJobStatusCancelled  ScanJobStatus = "cancelled"
)

// ScanJobStatuses lists every status in lifecycle order
var ScanJobStatuses = []ScanJobStatus{
	ScanJobStatusQueued,
	ScanJobStatusProcessing,
	ScanJobStatusCompleted,
	ScanJobStatusFailed,
	ScanJobStatusCancelled,
}

// claimLockID serialises claims across processes sharing a postgres database
const claimLockID int64 = 7340021

// ScanJob is a queued request to scan one URL
type ScanJob struct {
	BaseUUIDModel

	URL         string        `json:"url" gorm:"type:text;not null"`
	RequestID   *string       `json:"request_id,omitempty" gorm:"index;size:64"`
	NotifyEmail *string       `json:"notify_email,omitempty" gorm:"size:320"`
	Locale      string        `json:"locale" gorm:"size:16;not null;default:'en'"`
	Priority    int           `json:"priority" gorm:"index;not null;default:0"`
	Status      ScanJobStatus `json:"status" gorm:"index;size:20;not null;default:'queued'"`
	Progress    int           `json:"progress" gorm:"not null;default:0"`
	CurrentStep string        `json:"current_step,omitempty" gorm:"size:100"`
	QueuedAt    time.Time     `json:"queued_at" gorm:"index;not null"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	ReportID    *string       `json:"report_id,omitempty" gorm:"size:36"`
	Error       *string       `json:"error,omitempty" gorm:"type:text"`
}

// IsTerminal returns true if the job is in a terminal state
func (j *ScanJob) IsTerminal() bool {
	return j.Status == ScanJobStatusCompleted ||
		j.Status == ScanJobStatusFailed ||
		j.Status == ScanJobStatusCancelled
}

// TableHeaders returns table headers for CLI output
func (j ScanJob) TableHeaders() []string {
	return []string{"ID", "URL", "Status", "Priority", "Progress", "Step", "Queued"}
}

// TableRow returns table row for CLI output
func (j ScanJob) TableRow() []string {
	return []string{
		j.ID,
		lib.Truncate(j.URL, PrintMaxURLLength),
		string(j.Status),
		fmt.Sprintf("%d", j.Priority),
		fmt.Sprintf("%d%%", j.Progress),
		j.CurrentStep,
		j.QueuedAt.Format(time.RFC3339),
	}
}

// String provides a basic textual representation
func (j ScanJob) String() string {
	return fmt.Sprintf("ID: %s, URL: %s, Status: %s, Priority: %d", j.ID, j.URL, j.Status, j.Priority)
}

// Pretty provides a coloured one line representation
func (j ScanJob) Pretty() string {
	return fmt.Sprintf("%s %s %s %s %s",
		lib.Label("["+j.ID+"]"),
		j.URL,
		string(j.Status),
		lib.Label("priority:"), fmt.Sprintf("%d", j.Priority))
}

// ScanJobFilter represents available scan job filters
type ScanJobFilter struct {
	Query      string
	Statuses   []ScanJobStatus
	Pagination Pagination
}

// CreateScanJob inserts a new queued job. QueuedAt is set by the store and never changes afterwards.
func (d *DatabaseConnection) CreateScanJob(ctx context.Context, job *ScanJob) (*ScanJob, error) {
	job.Status = ScanJobStatusQueued
	job.Progress = 0
	job.QueuedAt = d.Now()
	if job.Locale == "" {
		job.Locale = "en"
	}
	result := d.db.WithContext(ctx).Create(job)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("url", job.URL).Msg("ScanJob creation failed")
	}
	return job, result.Error
}

// GetScanJobByID retrieves a scan job by ID
func (d *DatabaseConnection) GetScanJobByID(ctx context.Context, id string) (*ScanJob, error) {
	var job ScanJob
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ScanJobPosition returns the 1-based position of a queued job, counting the
// queued jobs that will be claimed before it.
func (d *DatabaseConnection) ScanJobPosition(ctx context.Context, job *ScanJob) (int, error) {
	var ahead int64
	err := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("status = ?", ScanJobStatusQueued).
		Where("id <> ?", job.ID).
		Where(
			d.db.Where("priority > ?", job.Priority).
				Or("priority = ? AND queued_at < ?", job.Priority, job.QueuedAt).
				Or("priority = ? AND queued_at = ? AND id < ?", job.Priority, job.QueuedAt, job.ID),
		).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// ListScanJobs lists scan jobs with filters, newest first
func (d *DatabaseConnection) ListScanJobs(ctx context.Context, filter ScanJobFilter) (items []*ScanJob, count int64, err error) {
	query := d.db.WithContext(ctx).Model(&ScanJob{})

	if filter.Query != "" {
		query = query.Where("url LIKE ?", "%"+filter.Query+"%")
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	err = query.Scopes(Paginate(&filter.Pagination)).Order("queued_at desc, id desc").Find(&items).Error
	return items, count, err
}

// ClaimNextScanJob moves the highest priority, oldest queued job to processing,
// provided fewer than limit jobs are already processing. It returns nil when
// nothing was claimed. The check and the update happen in one transaction;
// on postgres an advisory lock serialises claimers across processes.
func (d *DatabaseConnection) ClaimNextScanJob(ctx context.Context, limit int) (*ScanJob, error) {
	var claimed *ScanJob

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d.IsPostgres() {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", claimLockID).Error; err != nil {
				return fmt.Errorf("acquire claim lock: %w", err)
			}
		}

		var processing int64
		if err := tx.Model(&ScanJob{}).Where("status = ?", ScanJobStatusProcessing).Count(&processing).Error; err != nil {
			return err
		}
		if processing >= int64(limit) {
			return nil
		}

		query := tx.Where("status = ?", ScanJobStatusQueued).
			Order("priority desc, queued_at asc, id asc").
			Limit(1)
		if d.IsPostgres() {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var candidate ScanJob
		result := query.Find(&candidate)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		now := d.Now()
		update := tx.Model(&ScanJob{}).
			Where("id = ? AND status = ?", candidate.ID, ScanJobStatusQueued).
			Updates(map[string]interface{}{
				"status":     ScanJobStatusProcessing,
				"started_at": now,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return nil
		}
		candidate.Status = ScanJobStatusProcessing
		candidate.StartedAt = &now
		claimed = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		log.Debug().Str("job_id", claimed.ID).Int("priority", claimed.Priority).Msg("Claimed scan job")
	}
	return claimed, nil
}

// MarkScanJobProcessing moves a queued job to processing without a concurrency
// check, used when an external dispatcher already bounds concurrency.
func (d *DatabaseConnection) MarkScanJobProcessing(ctx context.Context, id string) (*ScanJob, error) {
	now := d.Now()
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("id = ? AND status = ?", id, ScanJobStatusQueued).
		Updates(map[string]interface{}{
			"status":     ScanJobStatusProcessing,
			"started_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return d.GetScanJobByID(ctx, id)
}

// UpdateScanJobProgress records a progress checkpoint. Progress never decreases
// and only processing jobs are updated.
func (d *DatabaseConnection) UpdateScanJobProgress(ctx context.Context, id string, progress int, step string) (bool, error) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("id = ? AND status = ? AND progress <= ?", id, ScanJobStatusProcessing, progress).
		Updates(map[string]interface{}{
			"progress":     progress,
			"current_step": step,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkScanJobCompleted marks a processing job as completed with its report
func (d *DatabaseConnection) MarkScanJobCompleted(ctx context.Context, id string, reportID string) (bool, error) {
	now := d.Now()
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("id = ? AND status = ?", id, ScanJobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       ScanJobStatusCompleted,
			"progress":     100,
			"current_step": "completed",
			"completed_at": now,
			"report_id":    reportID,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkScanJobFailed marks a processing job as failed, keeping its last progress
func (d *DatabaseConnection) MarkScanJobFailed(ctx context.Context, id string, errorMsg string) (bool, error) {
	now := d.Now()
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("id = ? AND status = ?", id, ScanJobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       ScanJobStatusFailed,
			"completed_at": now,
			"error":        errorMsg,
		})
	return result.RowsAffected > 0, result.Error
}

// CancelQueuedScanJob cancels a job only while it is still queued
func (d *DatabaseConnection) CancelQueuedScanJob(ctx context.Context, id string) (bool, error) {
	now := d.Now()
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("id = ? AND status = ?", id, ScanJobStatusQueued).
		Updates(map[string]interface{}{
			"status":       ScanJobStatusCancelled,
			"completed_at": now,
		})
	return result.RowsAffected > 0, result.Error
}

// CancelQueuedScanJobWithError cancels a queued job recording why, used when
// a job could not be handed to its dispatcher.
func (d *DatabaseConnection) CancelQueuedScanJobWithError(ctx context.Context, id string, errorMsg string) (bool, error) {
	now := d.Now()
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("id = ? AND status = ?", id, ScanJobStatusQueued).
		Updates(map[string]interface{}{
			"status":       ScanJobStatusCancelled,
			"completed_at": now,
			"error":        errorMsg,
		})
	return result.RowsAffected > 0, result.Error
}

// FailStaleProcessingJobs fails jobs that started before the threshold and
// never finished, typically because the worker process died.
func (d *DatabaseConnection) FailStaleProcessingJobs(ctx context.Context, startedBefore time.Time, reason string) (int64, error) {
	now := d.Now()
	result := d.db.WithContext(ctx).Model(&ScanJob{}).
		Where("status = ? AND started_at < ?", ScanJobStatusProcessing, startedBefore.UTC()).
		Updates(map[string]interface{}{
			"status":       ScanJobStatusFailed,
			"completed_at": now,
			"error":        reason,
		})
	return result.RowsAffected, result.Error
}

// GetScanJobStats returns the number of jobs per status
func (d *DatabaseConnection) GetScanJobStats(ctx context.Context) (map[ScanJobStatus]int64, error) {
	var results []struct {
		Status ScanJobStatus
		Count  int64
	}

	err := d.db.WithContext(ctx).Model(&ScanJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[ScanJobStatus]int64, len(ScanJobStatuses))
	for _, status := range ScanJobStatuses {
		stats[status] = 0
	}
	for _, r := range results {
		stats[r.Status] = r.Count
	}
	return stats, nil
}
