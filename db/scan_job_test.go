package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns a clock advancing one second per call
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

func newJob(t *testing.T, conn *DatabaseConnection, url string, priority int) *ScanJob {
	t.Helper()
	job, err := conn.CreateScanJob(context.Background(), &ScanJob{URL: url, Priority: priority})
	require.NoError(t, err)
	return job
}

func TestCreateScanJobDefaults(t *testing.T) {
	conn := newTestDatabase(t)
	ctx := context.Background()

	job := newJob(t, conn, "https://example.com", 0)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, ScanJobStatusQueued, job.Status)
	assert.Equal(t, "en", job.Locale)
	assert.Equal(t, 0, job.Progress)
	assert.False(t, job.QueuedAt.IsZero())

	stored, err := conn.GetScanJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.URL, stored.URL)
	assert.True(t, job.QueuedAt.Equal(stored.QueuedAt))
}

func TestScanJobPosition(t *testing.T) {
	conn := newTestDatabase(t)
	conn.SetClock(steppingClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	first := newJob(t, conn, "https://a.example", 0)
	second := newJob(t, conn, "https://b.example", 0)
	urgent := newJob(t, conn, "https://c.example", 5)

	pos, err := conn.ScanJobPosition(ctx, urgent)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = conn.ScanJobPosition(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	pos, err = conn.ScanJobPosition(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	cancelled, err := conn.CancelQueuedScanJob(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	pos, err = conn.ScanJobPosition(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestClaimNextScanJobOrdering(t *testing.T) {
	conn := newTestDatabase(t)
	conn.SetClock(steppingClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	a := newJob(t, conn, "https://a.example", 0)
	b := newJob(t, conn, "https://b.example", 0)
	c := newJob(t, conn, "https://c.example", 5)

	var order []string
	for i := 0; i < 3; i++ {
		job, err := conn.ClaimNextScanJob(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, ScanJobStatusProcessing, job.Status)
		assert.NotNil(t, job.StartedAt)
		order = append(order, job.ID)

		ok, err := conn.MarkScanJobCompleted(ctx, job.ID, "report-"+job.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, order)

	job, err := conn.ClaimNextScanJob(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestClaimNextScanJobRespectsLimit(t *testing.T) {
	conn := newTestDatabase(t)
	ctx := context.Background()

	newJob(t, conn, "https://a.example", 0)
	newJob(t, conn, "https://b.example", 0)

	job, err := conn.ClaimNextScanJob(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, job)

	blocked, err := conn.ClaimNextScanJob(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, blocked, "a second job must not start while the limit is reached")

	another, err := conn.ClaimNextScanJob(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, another)
}

func TestClaimNextScanJobConcurrentClaimers(t *testing.T) {
	conn := newTestDatabase(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		newJob(t, conn, "https://example.com", 0)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := conn.ClaimNextScanJob(ctx, 1)
			assert.NoError(t, err)
			if job != nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)

	stats, err := conn.GetScanJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[ScanJobStatusProcessing])
	assert.Equal(t, int64(4), stats[ScanJobStatusQueued])
}

func TestScanJobTransitions(t *testing.T) {
	conn := newTestDatabase(t)
	ctx := context.Background()

	t.Run("cancel only while queued", func(t *testing.T) {
		job := newJob(t, conn, "https://cancel.example", 100)
		ok, err := conn.CancelQueuedScanJob(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = conn.CancelQueuedScanJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok, "cancelling twice must not succeed")

		_, err = conn.MarkScanJobProcessing(ctx, job.ID)
		require.NoError(t, err)
		stored, err := conn.GetScanJobByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, ScanJobStatusCancelled, stored.Status)
	})

	t.Run("processing job cannot be cancelled", func(t *testing.T) {
		job := newJob(t, conn, "https://processing.example", 99)
		claimed, err := conn.MarkScanJobProcessing(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, claimed)

		ok, err := conn.CancelQueuedScanJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = conn.MarkScanJobFailed(ctx, job.ID, "boom")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = conn.MarkScanJobCompleted(ctx, job.ID, "r1")
		require.NoError(t, err)
		assert.False(t, ok, "failed is terminal")

		stored, err := conn.GetScanJobByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, ScanJobStatusFailed, stored.Status)
		require.NotNil(t, stored.Error)
		assert.Equal(t, "boom", *stored.Error)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("queued job cannot complete", func(t *testing.T) {
		job := newJob(t, conn, "https://queued.example", 0)
		ok, err := conn.MarkScanJobCompleted(ctx, job.ID, "r2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUpdateScanJobProgressIsMonotonic(t *testing.T) {
	conn := newTestDatabase(t)
	ctx := context.Background()

	job := newJob(t, conn, "https://example.com", 0)

	ok, err := conn.UpdateScanJobProgress(ctx, job.ID, 5, "initializing")
	require.NoError(t, err)
	assert.False(t, ok, "queued jobs do not record progress")

	_, err = conn.MarkScanJobProcessing(ctx, job.ID)
	require.NoError(t, err)

	ok, err = conn.UpdateScanJobProgress(ctx, job.ID, 10, "loading")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = conn.UpdateScanJobProgress(ctx, job.ID, 5, "initializing")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := conn.GetScanJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Progress)
	assert.Equal(t, "loading", stored.CurrentStep)

	ok, err = conn.MarkScanJobCompleted(ctx, job.ID, "report-1")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err = conn.GetScanJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ReportID)
	assert.Equal(t, "report-1", *stored.ReportID)
}

func TestFailStaleProcessingJobs(t *testing.T) {
	conn := newTestDatabase(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	current := base
	conn.SetClock(func() time.Time { return current })
	ctx := context.Background()

	stale := newJob(t, conn, "https://stale.example", 0)
	_, err := conn.MarkScanJobProcessing(ctx, stale.ID)
	require.NoError(t, err)

	current = base.Add(time.Hour)
	fresh := newJob(t, conn, "https://fresh.example", 0)
	_, err = conn.MarkScanJobProcessing(ctx, fresh.ID)
	require.NoError(t, err)

	count, err := conn.FailStaleProcessingJobs(ctx, base.Add(30*time.Minute), "interrupted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := conn.GetScanJobByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, ScanJobStatusFailed, stored.Status)

	stored, err = conn.GetScanJobByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, ScanJobStatusProcessing, stored.Status)
}

func TestListScanJobs(t *testing.T) {
	conn := newTestDatabase(t)
	conn.SetClock(steppingClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	newJob(t, conn, "https://shop.example", 0)
	last := newJob(t, conn, "https://blog.example", 0)
	cancelled := newJob(t, conn, "https://shop2.example", 0)
	_, err := conn.CancelQueuedScanJob(ctx, cancelled.ID)
	require.NoError(t, err)

	items, count, err := conn.ListScanJobs(ctx, ScanJobFilter{Statuses: []ScanJobStatus{ScanJobStatusQueued}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, items, 2)
	assert.Equal(t, last.ID, items[0].ID)

	items, count, err = conn.ListScanJobs(ctx, ScanJobFilter{Query: "shop"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, items, 2)
}
