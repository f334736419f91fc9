package browser_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/browser/browsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(l *browsertest.Launcher) *browser.Session {
	return browser.NewSession(browser.SessionConfig{
		Launch:        l.Launch,
		Identity:      browser.Identity{UserAgent: "test-agent", ViewportWidth: 1280, ViewportHeight: 720},
		LaunchTimeout: time.Second,
	})
}

func TestAcquireReusesLiveEngine(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	first, err := s.Acquire(context.Background())
	require.NoError(t, err)
	second, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, l.Count())
}

func TestAcquireSingleFlight(t *testing.T) {
	l := &browsertest.Launcher{Delay: 100 * time.Millisecond}
	s := newSession(l)
	defer s.Close()

	var wg sync.WaitGroup
	engines := make([]browser.Engine, 10)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := s.Acquire(context.Background())
			assert.NoError(t, err)
			engines[i] = e
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, l.Count(), "concurrent callers must share one launch")
	for _, e := range engines {
		assert.Same(t, engines[0], e)
	}
}

func TestAcquireReplacesDisconnectedEngine(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	first, err := s.Acquire(context.Background())
	require.NoError(t, err)
	first.(*browsertest.Engine).Disconnect()

	second, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, l.Count())
	assert.True(t, first.(*browsertest.Engine).Closed(), "dead engine is closed before replacement")
}

func TestReportErrorMarksEngineDead(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	first, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.False(t, s.ReportError(first, errors.New("navigation timeout")))
	same, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, same)

	assert.True(t, s.ReportError(first, errors.New("Target closed")))
	replaced, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, replaced)
	assert.Equal(t, 2, l.Count())
}

func TestReportErrorIgnoresReplacedEngine(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	first, err := s.Acquire(context.Background())
	require.NoError(t, err)

	// two jobs on the same engine both see it crash
	assert.True(t, s.ReportError(first, errors.New("Target closed")))
	second, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NotSame(t, first, second)

	assert.True(t, s.ReportError(first, errors.New("websocket: close 1006")), "still classified as a crash")
	third, err := s.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, second, third)
	assert.Equal(t, 2, l.Count())
	assert.False(t, second.(*browsertest.Engine).Closed(), "healthy replacement stays open")
}

func TestCloseContextReportsCrashForItsEngine(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	engine, err := s.Acquire(context.Background())
	require.NoError(t, err)

	s.CloseContext(engine, &browsertest.Context{CloseErr: errors.New("Protocol error (Target.disposeBrowserContext)")})
	replaced, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, engine, replaced)
}

func TestAcquirePropagatesLaunchError(t *testing.T) {
	l := &browsertest.Launcher{Err: errors.New("chromium not found")}
	s := newSession(l)
	defer s.Close()

	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium not found")
	assert.Equal(t, 1, l.Count(), "no internal retry")

	_, err = s.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, l.Count(), "next acquire tries again")
}

func TestAcquireHonoursCallerContext(t *testing.T) {
	l := &browsertest.Launcher{Delay: 500 * time.Millisecond}
	s := newSession(l)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the shared launch keeps going and is reused
	engine, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, engine)
	assert.Equal(t, 1, l.Count())
}

func TestNewContextAppliesIdentity(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	engine, err := s.Acquire(context.Background())
	require.NoError(t, err)
	bctx, err := s.NewContext(engine)
	require.NoError(t, err)
	s.CloseContext(engine, bctx)

	identities := engine.(*browsertest.Engine).Identities()
	require.Len(t, identities, 1)
	assert.Equal(t, "test-agent", identities[0].UserAgent)
	assert.Equal(t, 1, bctx.(*browsertest.Context).CloseCount())
}

func TestCloseContextSwallowsErrors(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)
	defer s.Close()

	assert.NotPanics(t, func() {
		s.CloseContext(nil, &browsertest.Context{CloseErr: errors.New("already closed")})
		s.CloseContext(nil, nil)
	})
}

func TestAcquireAfterClose(t *testing.T) {
	l := &browsertest.Launcher{}
	s := newSession(l)

	engine, err := s.Acquire(context.Background())
	require.NoError(t, err)
	s.Close()
	assert.True(t, engine.(*browsertest.Engine).Closed())

	_, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
}
