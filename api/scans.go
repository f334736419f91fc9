package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/rs/zerolog/log"
)

// CreateScanRequest is the body accepted by CreateScanHandler
type CreateScanRequest struct {
	URL         string  `json:"url" validate:"required"`
	RequestID   *string `json:"request_id" validate:"omitempty,max=64"`
	NotifyEmail *string `json:"notify_email" validate:"omitempty,max=320"`
	Locale      string  `json:"locale" validate:"omitempty,max=16"`
	Priority    int     `json:"priority"`
}

// ScanListResponse is a page of jobs
type ScanListResponse struct {
	Items []*db.ScanJob `json:"items"`
	Count int64         `json:"count"`
}

var validate = validator.New()

// CreateScanHandler queues a new scan
// @Summary Queue a scan
// @Tags Scans
// @Accept json
// @Produce json
// @Param scan body CreateScanRequest true "Scan request"
// @Success 202 {object} queue.JobStatus
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/scans [post]
func CreateScanHandler(c *fiber.Ctx) error {
	input := new(CreateScanRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Cannot parse JSON", err.Error()))
	}
	if err := validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				fields = append(fields, fmt.Sprintf("invalid value for %s", fieldErr.Field()))
			}
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Validation failed", strings.Join(fields, ", ")))
		}
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Validation failed", err.Error()))
	}

	status, err := jobQueueFrom(c).AddJob(c.UserContext(), queue.JobSpec{
		URL:         input.URL,
		RequestID:   input.RequestID,
		NotifyEmail: input.NotifyEmail,
		Locale:      input.Locale,
		Priority:    input.Priority,
	})
	if errors.Is(err, queue.ErrPriorityOutOfRange) {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid priority", err.Error()))
	}
	if err != nil {
		log.Error().Err(err).Str("url", input.URL).Msg("Failed to queue scan")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to queue scan", err.Error()))
	}
	return c.Status(fiber.StatusAccepted).JSON(status)
}

// GetScanHandler returns a job's status and queue position
// @Summary Get scan status
// @Tags Scans
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} queue.JobStatus
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/scans/{id} [get]
func GetScanHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	status, err := jobQueueFrom(c).GetJobStatus(c.UserContext(), id)
	if errors.Is(err, queue.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Scan not found", "No scan exists with the provided ID"))
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("Failed to get scan status")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to get scan", err.Error()))
	}
	return c.JSON(status)
}

// CancelScanHandler cancels a scan that has not started
// @Summary Cancel a queued scan
// @Tags Scans
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} CancelResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} CancelResponse
// @Router /api/v1/scans/{id} [delete]
func CancelScanHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	q := jobQueueFrom(c)
	cancelled, err := q.CancelJob(c.UserContext(), id)
	if err != nil {
		log.Error().Err(err).Str("job_id", id).Msg("Failed to cancel scan")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to cancel scan", err.Error()))
	}
	if cancelled {
		return c.JSON(CancelResponse{ID: id, Cancelled: true, Message: "Scan cancelled"})
	}

	status, err := q.GetJobStatus(c.UserContext(), id)
	if errors.Is(err, queue.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Scan not found", "No scan exists with the provided ID"))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to get scan", err.Error()))
	}
	return c.Status(fiber.StatusConflict).JSON(CancelResponse{
		ID:      id,
		Message: "Only queued scans can be cancelled, scan is " + string(status.Status),
	})
}

// ListScansHandler lists jobs newest first
// @Summary List scans
// @Tags Scans
// @Produce json
// @Param query query string false "Search by URL"
// @Param status query string false "Filter by status (comma-separated)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} ScanListResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/scans [get]
func ListScansHandler(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid page parameter"))
	}
	pageSize, err := strconv.Atoi(c.Query("page_size", "50"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid page size parameter"))
	}

	filter := db.ScanJobFilter{
		Query:      c.Query("query"),
		Pagination: db.Pagination{Page: page, PageSize: pageSize},
	}
	if unparsed := c.Query("status"); unparsed != "" {
		for _, status := range strings.Split(unparsed, ",") {
			filter.Statuses = append(filter.Statuses, db.ScanJobStatus(strings.TrimSpace(status)))
		}
	}

	items, count, err := dbFrom(c).ListScanJobs(c.UserContext(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list scans")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to list scans", err.Error()))
	}
	return c.JSON(ScanListResponse{Items: items, Count: count})
}

// QueueStatsHandler returns per-status counts and wait estimates
// @Summary Queue statistics
// @Tags Scans
// @Produce json
// @Success 200 {object} queue.QueueStats
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/queue/stats [get]
func QueueStatsHandler(c *fiber.Ctx) error {
	stats, err := jobQueueFrom(c).GetStats(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get queue stats")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to get queue stats", err.Error()))
	}
	return c.JSON(stats)
}
