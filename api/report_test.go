package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReportHandler(t *testing.T) {
	app, conn := newTestApp(t)
	result := &report.ScanResult{
		URL:           "https://example.com",
		ScanStartedAt: time.Now().UTC(),
		Issues: []report.Issue{
			{Code: "NO_HTTPS", Risk: report.RiskHigh, Title: "Site is not served over HTTPS"},
		},
		RiskLevel: report.RiskHigh,
		Score:     80,
	}
	reportID, err := conn.SaveScanResult(context.Background(), result, nil)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/reports/"+reportID, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"report_id": "`+reportID+`"`)
	assert.Contains(t, string(body), "NO_HTTPS")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/reports/"+reportID+"?format=html", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/reports/"+reportID+"?format=pdf", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/reports/"+uuid.NewString(), nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
