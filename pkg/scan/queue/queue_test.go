package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/db/dbtest"
	"github.com/pyneda/consentscan/pkg/scan/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// recordingRunner completes every job and remembers the order it saw them in
type recordingRunner struct {
	conn    *db.DatabaseConnection
	started chan string
	release chan struct{}

	mu      sync.Mutex
	order   []string
	running int
	peak    int
}

func (r *recordingRunner) Execute(ctx context.Context, job *db.ScanJob) worker.Outcome {
	r.mu.Lock()
	r.order = append(r.order, job.URL)
	r.running++
	if r.running > r.peak {
		r.peak = r.running
	}
	r.mu.Unlock()

	if r.started != nil {
		r.started <- job.ID
	}
	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	r.running--
	r.mu.Unlock()
	_, _ = r.conn.MarkScanJobCompleted(ctx, job.ID, uuid.NewString())
	return worker.Outcome{Status: db.ScanJobStatusCompleted, Duration: 2 * time.Second}
}

func (r *recordingRunner) maxRunning() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

func (r *recordingRunner) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func testConfig() Config {
	return Config{
		MaxConcurrent:        1,
		PollInterval:         50 * time.Millisecond,
		EstimatedJobDuration: 30 * time.Second,
	}
}

func waitForStatus(t *testing.T, q JobQueue, id string, status db.ScanJobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		current, err := q.GetJobStatus(context.Background(), id)
		return err == nil && current.Status == status
	}, 5*time.Second, 20*time.Millisecond)
}

func TestAddJobPositions(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	conn.SetClock(steppingClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))
	q := NewPollingQueue(conn, &recordingRunner{conn: conn}, testConfig(), nil)
	ctx := context.Background()

	low, err := q.AddJob(ctx, JobSpec{URL: "https://low.example"})
	require.NoError(t, err)
	assert.Equal(t, 1, low.Position)
	assert.Equal(t, "en", low.Locale)
	assert.Equal(t, db.ScanJobStatusQueued, low.Status)

	second, err := q.AddJob(ctx, JobSpec{URL: "https://second.example", Locale: "de"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, "de", second.Locale)

	urgent, err := q.AddJob(ctx, JobSpec{URL: "https://urgent.example", Priority: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, urgent.Position)

	current, err := q.GetJobStatus(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Position)
	current, err = q.GetJobStatus(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, current.Position)
}

func TestAddJobRequiresURL(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	q := NewPollingQueue(conn, &recordingRunner{conn: conn}, testConfig(), nil)

	_, err := q.AddJob(context.Background(), JobSpec{URL: "  "})
	assert.Error(t, err)
}

func TestGetJobStatusNotFound(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	q := NewPollingQueue(conn, &recordingRunner{conn: conn}, testConfig(), nil)

	_, err := q.GetJobStatus(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCancelJobOnlyWhileQueued(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	q := NewPollingQueue(conn, &recordingRunner{conn: conn}, testConfig(), nil)
	ctx := context.Background()

	job, err := q.AddJob(ctx, JobSpec{URL: "https://cancel.example"})
	require.NoError(t, err)

	cancelled, err := q.CancelJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	cancelled, err = q.CancelJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	current, err := q.GetJobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ScanJobStatusCancelled, current.Status)
	assert.Zero(t, current.Position)

	cancelled, err = q.CancelJob(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestGetStats(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	config := testConfig()
	config.MaxConcurrent = 2
	q := NewPollingQueue(conn, &recordingRunner{conn: conn}, config, metrics)
	ctx := context.Background()

	for _, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		_, err := q.AddJob(ctx, JobSpec{URL: url})
		require.NoError(t, err)
	}
	cancel, err := q.AddJob(ctx, JobSpec{URL: "https://d.example"})
	require.NoError(t, err)
	_, err = q.CancelJob(ctx, cancel.ID)
	require.NoError(t, err)

	stats, err := q.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Queued)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, 2, stats.MaxConcurrent)
	assert.Equal(t, 30*time.Second, stats.EstimatedJobDuration)
	assert.Equal(t, 60*time.Second, stats.EstimatedWait)
	assert.Equal(t, BackendDatabase, stats.Backend)

	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.enqueued))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.depth.WithLabelValues("queued")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.depth.WithLabelValues("processing")))
}

func TestPollingQueueRunsByPriorityThenAge(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	conn.SetClock(steppingClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))
	runner := &recordingRunner{conn: conn}
	metrics := NewMetrics(prometheus.NewRegistry())
	q := NewPollingQueue(conn, runner, testConfig(), metrics)
	ctx := context.Background()

	var ids []string
	for _, spec := range []JobSpec{
		{URL: "https://first.example"},
		{URL: "https://second.example"},
		{URL: "https://urgent.example", Priority: 2},
		{URL: "https://medium.example", Priority: 1},
	} {
		status, err := q.AddJob(ctx, spec)
		require.NoError(t, err)
		ids = append(ids, status.ID)
	}

	require.NoError(t, q.Start())
	defer q.Stop()
	for _, id := range ids {
		waitForStatus(t, q, id, db.ScanJobStatusCompleted)
	}

	assert.Equal(t, []string{
		"https://urgent.example",
		"https://medium.example",
		"https://first.example",
		"https://second.example",
	}, runner.seen())
	assert.Equal(t, 1, runner.maxRunning())
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.finished.WithLabelValues("completed")) == 4
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPollingQueueWakesOnAddJob(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	runner := &recordingRunner{conn: conn}
	config := testConfig()
	config.PollInterval = time.Hour
	q := NewPollingQueue(conn, runner, config, nil)
	require.NoError(t, q.Start())
	defer q.Stop()

	status, err := q.AddJob(context.Background(), JobSpec{URL: "https://wake.example"})
	require.NoError(t, err)
	waitForStatus(t, q, status.ID, db.ScanJobStatusCompleted)
}

func TestPollingQueueStopWaitsForRunningJob(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	runner := &recordingRunner{conn: conn, started: make(chan string, 1), release: make(chan struct{})}
	q := NewPollingQueue(conn, runner, testConfig(), nil)
	ctx := context.Background()

	status, err := q.AddJob(ctx, JobSpec{URL: "https://slow.example"})
	require.NoError(t, err)
	require.NoError(t, q.Start())

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the job finished")
	}

	current, err := q.GetJobStatus(ctx, status.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ScanJobStatusCompleted, current.Status)
}

func TestStartFailsStaleProcessingJobs(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	ctx := context.Background()
	conn.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	stale, err := conn.CreateScanJob(ctx, &db.ScanJob{URL: "https://stale.example"})
	require.NoError(t, err)
	claimed, err := conn.ClaimNextScanJob(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	conn.SetClock(time.Now)

	config := testConfig()
	config.StaleAfter = 30 * time.Minute
	q := NewPollingQueue(conn, &recordingRunner{conn: conn}, config, nil)
	require.NoError(t, q.Start())
	defer q.Stop()

	current, err := q.GetJobStatus(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ScanJobStatusFailed, current.Status)
	require.NotNil(t, current.Error)
	assert.Equal(t, staleJobReason, *current.Error)
}

func TestNewUnknownBackend(t *testing.T) {
	conn := dbtest.NewDatabase(t)
	_, err := New(conn, &recordingRunner{conn: conn}, Config{Backend: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	q, err := New(conn, &recordingRunner{conn: conn}, Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PollingQueue{}, q)
}
