package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/db/dbtest"
	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *db.DatabaseConnection) {
	t.Helper()
	conn := dbtest.NewDatabase(t)
	q := queue.NewPollingQueue(conn, nil, queue.Config{MaxConcurrent: 1, EstimatedJobDuration: 30 * time.Second}, nil)
	return NewApp(q, conn), conn
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, out interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestCreateAndGetScan(t *testing.T) {
	app, _ := newTestApp(t)

	var created queue.JobStatus
	resp := doJSON(t, app, "POST", "/api/v1/scans", `{"url":"https://example.com","priority":2,"locale":"fr"}`, &created)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, db.ScanJobStatusQueued, created.Status)
	assert.Equal(t, 1, created.Position)
	assert.Equal(t, "fr", created.Locale)
	assert.Equal(t, 2, created.Priority)

	var fetched queue.JobStatus
	resp = doJSON(t, app, "GET", "/api/v1/scans/"+created.ID, "", &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "https://example.com", fetched.URL)
}

func TestCreateScanValidation(t *testing.T) {
	app, _ := newTestApp(t)

	var errResp ErrorResponse
	resp := doJSON(t, app, "POST", "/api/v1/scans", `{"priority":1}`, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation failed", errResp.Error)

	resp = doJSON(t, app, "POST", "/api/v1/scans", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type boundedDispatcher struct {
	published []string
}

func (d *boundedDispatcher) Publish(ctx context.Context, jobID string, priority int) error {
	d.published = append(d.published, jobID)
	return nil
}

func (d *boundedDispatcher) MaxPriority() int { return 2 }

func (d *boundedDispatcher) Fetch(ctx context.Context, max int) ([]queue.Delivery, error) {
	return nil, nil
}

func (d *boundedDispatcher) AckWait() time.Duration { return time.Minute }

func (d *boundedDispatcher) Close() error { return nil }

func TestCreateScanRejectsPriorityOutsideDispatchRange(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	dispatcher := &boundedDispatcher{}
	q := queue.NewDispatchQueue(conn, dispatcher, nil, queue.Config{MaxConcurrent: 1}, nil)
	app := NewApp(q, conn)

	var errResp ErrorResponse
	resp := doJSON(t, app, "POST", "/api/v1/scans", `{"url":"https://example.com","priority":5}`, &errResp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid priority", errResp.Error)
	assert.Empty(t, dispatcher.published)

	resp = doJSON(t, app, "POST", "/api/v1/scans", `{"url":"https://example.com","priority":2}`, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Len(t, dispatcher.published, 1)
}

func TestGetScanNotFound(t *testing.T) {
	app, _ := newTestApp(t)
	resp := doJSON(t, app, "GET", "/api/v1/scans/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelScan(t *testing.T) {
	app, conn := newTestApp(t)

	var created queue.JobStatus
	doJSON(t, app, "POST", "/api/v1/scans", `{"url":"https://example.com"}`, &created)

	var cancelled CancelResponse
	resp := doJSON(t, app, "DELETE", "/api/v1/scans/"+created.ID, "", &cancelled)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, cancelled.Cancelled)

	var again CancelResponse
	resp = doJSON(t, app, "DELETE", "/api/v1/scans/"+created.ID, "", &again)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, again.Cancelled)
	assert.Contains(t, again.Message, "cancelled")

	resp = doJSON(t, app, "DELETE", "/api/v1/scans/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	job, err := conn.GetScanJobByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ScanJobStatusCancelled, job.Status)
}

func TestListScansAndStats(t *testing.T) {
	app, _ := newTestApp(t)
	for _, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		doJSON(t, app, "POST", "/api/v1/scans", `{"url":"`+url+`"}`, nil)
	}

	var list ScanListResponse
	resp := doJSON(t, app, "GET", "/api/v1/scans?page=1&page_size=2&status=queued", "", &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), list.Count)
	assert.Len(t, list.Items, 2)

	resp = doJSON(t, app, "GET", "/api/v1/scans?page=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stats queue.QueueStats
	resp = doJSON(t, app, "GET", "/api/v1/queue/stats", "", &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), stats.Queued)
	assert.Equal(t, 1, stats.MaxConcurrent)
	assert.Equal(t, queue.BackendDatabase, stats.Backend)
}

func TestMetricsEndpoint(t *testing.T) {
	viper.Set("api.metrics.enabled", true)
	viper.Set("api.metrics.path", "/metrics")
	defer viper.Reset()
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
