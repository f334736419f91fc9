package api

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GetReportHandler renders a saved report
// @Summary Get a report
// @Tags Reports
// @Produce json,html
// @Param id path string true "Report ID"
// @Param format query string false "json or html" default(json)
// @Success 200 {object} string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/reports/{id} [get]
func GetReportHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	format := report.ReportFormat(c.Query("format", string(report.ReportFormatJSON)))
	if format != report.ReportFormatJSON && format != report.ReportFormatHTML {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("Invalid format", "Supported formats are json and html"))
	}

	saved, err := dbFrom(c).GetScanReport(c.UserContext(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Report not found", "No report exists with the provided ID"))
	}
	if err != nil {
		log.Error().Err(err).Str("report_id", id).Msg("Failed to load report")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to load report", err.Error()))
	}
	result, err := saved.ScanResult()
	if err != nil {
		log.Error().Err(err).Str("report_id", id).Msg("Failed to decode report")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to decode report", err.Error()))
	}

	var buf bytes.Buffer
	err = report.GenerateReport(report.ReportOptions{
		ReportID: saved.ID,
		Result:   result,
		Format:   format,
	}, &buf)
	if err != nil {
		log.Error().Err(err).Str("report_id", id).Msg("Failed to render report")
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("Failed to render report", err.Error()))
	}

	if format == report.ReportFormatHTML {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	}
	return c.Send(buf.Bytes())
}
