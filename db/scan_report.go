package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// ScanReport stores the full result of a finished scan
type ScanReport struct {
	BaseUUIDModel

	URL         string         `json:"url" gorm:"type:text;not null"`
	RequestID   *string        `json:"request_id,omitempty" gorm:"index;size:64"`
	Score       int            `json:"score"`
	RiskLevel   string         `json:"risk_level" gorm:"index;size:20"`
	IssuesCount int            `json:"issues_count"`
	StartedAt   time.Time      `json:"started_at"`
	DurationMs  int64          `json:"duration_ms"`
	Result      datatypes.JSON `json:"result"`
}

// ScanResult decodes the stored result
func (r *ScanReport) ScanResult() (*report.ScanResult, error) {
	var result report.ScanResult
	if err := json.Unmarshal(r.Result, &result); err != nil {
		return nil, fmt.Errorf("decode scan result %s: %w", r.ID, err)
	}
	return &result, nil
}

// SaveScanResult persists a scan result and returns the new report id
func (d *DatabaseConnection) SaveScanResult(ctx context.Context, result *report.ScanResult, requestID *string) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode scan result: %w", err)
	}
	record := ScanReport{
		URL:         result.URL,
		RequestID:   requestID,
		Score:       result.Score,
		RiskLevel:   string(result.RiskLevel),
		IssuesCount: len(result.Issues),
		StartedAt:   result.ScanStartedAt.UTC(),
		DurationMs:  result.Duration.Milliseconds(),
		Result:      datatypes.JSON(data),
	}
	if err := d.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.Error().Err(err).Str("url", result.URL).Msg("ScanReport creation failed")
		return "", err
	}
	return record.ID, nil
}

// GetScanReport retrieves a stored report by id
func (d *DatabaseConnection) GetScanReport(ctx context.Context, id string) (*ScanReport, error) {
	var record ScanReport
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
