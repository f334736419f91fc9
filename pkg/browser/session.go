package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/singleflight"
)

// ErrSessionClosed is returned by Acquire after Close
var ErrSessionClosed = errors.New("browser session closed")

const engineKey = "engine"

// SessionConfig holds configuration for a Session.
type SessionConfig struct {
	// Launch starts a new engine, LaunchRod when nil.
	Launch LaunchFunc
	// Identity is applied to every context.
	Identity Identity
	// CrashMatcher decides which errors invalidate the engine.
	CrashMatcher *CrashMatcher
	// LaunchTimeout bounds engine creation.
	LaunchTimeout time.Duration
}

// DefaultIdentity builds the browsing identity from configuration
func DefaultIdentity() Identity {
	return Identity{
		UserAgent:      viper.GetString("browser.user_agent"),
		AcceptLanguage: viper.GetString("browser.locale"),
		ViewportWidth:  viper.GetInt("browser.viewport.width"),
		ViewportHeight: viper.GetInt("browser.viewport.height"),
	}
}

// SessionConfigFromViper returns a SessionConfig populated from configuration
func SessionConfigFromViper() SessionConfig {
	return SessionConfig{
		Launch:        LaunchRod,
		Identity:      DefaultIdentity(),
		CrashMatcher:  CrashMatcherFromConfig(),
		LaunchTimeout: viper.GetDuration("browser.launch_timeout"),
	}
}

// Session owns at most one live engine. Concurrent callers needing a new
// engine share a single launch.
type Session struct {
	launch        LaunchFunc
	identity      Identity
	matcher       *CrashMatcher
	launchTimeout time.Duration

	group singleflight.Group

	mu     sync.Mutex
	engine Engine
	dead   bool
	closed bool
}

// NewSession creates a session. No engine is started until the first Acquire.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Launch == nil {
		cfg.Launch = LaunchRod
	}
	if cfg.CrashMatcher == nil {
		cfg.CrashMatcher = NewCrashMatcher()
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 30 * time.Second
	}
	return &Session{
		launch:        cfg.Launch,
		identity:      cfg.Identity,
		matcher:       cfg.CrashMatcher,
		launchTimeout: cfg.LaunchTimeout,
	}
}

// Acquire returns the live engine, launching a replacement when there is none
// or the current one is dead. Launch errors are returned as is, without retry.
func (s *Session) Acquire(ctx context.Context) (Engine, error) {
	if engine, ok := s.current(); ok {
		return engine, nil
	}

	ch := s.group.DoChan(engineKey, func() (interface{}, error) {
		return s.replace()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Engine), nil
	}
}

// current returns the engine when it is usable
func (s *Session) current() (Engine, bool) {
	s.mu.Lock()
	engine, dead, closed := s.engine, s.dead, s.closed
	s.mu.Unlock()
	if closed || engine == nil || dead {
		return nil, false
	}
	return engine, engine.Connected()
}

func (s *Session) replace() (Engine, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	old, dead := s.engine, s.dead
	s.mu.Unlock()

	if old != nil && !dead && old.Connected() {
		return old, nil
	}
	if old != nil {
		log.Warn().Bool("flagged", dead).Msg("Browser engine is no longer usable, relaunching")
		s.closeEngine(old)
		s.mu.Lock()
		if s.engine == old {
			s.engine = nil
		}
		s.mu.Unlock()
	}

	// the launch is shared, so it must not die with the first caller's context
	launchCtx, cancel := context.WithTimeout(context.Background(), s.launchTimeout)
	defer cancel()
	started := time.Now()
	engine, err := s.launch(launchCtx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to launch browser engine")
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.closeEngine(engine)
		return nil, ErrSessionClosed
	}
	s.engine = engine
	s.dead = false
	s.mu.Unlock()

	log.Info().Dur("took", time.Since(started)).Msg("Browser engine launched")
	return engine, nil
}

// NewContext opens an isolated context on the engine with the session identity
func (s *Session) NewContext(engine Engine) (Context, error) {
	bctx, err := engine.NewContext(s.identity)
	if err != nil {
		s.ReportError(engine, err)
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	return bctx, nil
}

// CloseContext closes a context opened on engine, logging and swallowing any error
func (s *Session) CloseContext(engine Engine, bctx Context) {
	if bctx == nil {
		return
	}
	if err := bctx.Close(); err != nil {
		s.ReportError(engine, err)
		log.Warn().Err(err).Msg("Failed to close browser context")
	}
}

// ReportError flags engine as dead when err carries a crash signature and
// engine is still the session's current one. Errors from an engine that was
// already replaced never affect its successor. It returns whether the error
// was classified as a crash.
func (s *Session) ReportError(engine Engine, err error) bool {
	if !s.matcher.IsCrashSignature(err) {
		return false
	}
	s.mu.Lock()
	current := engine != nil && s.engine == engine
	flagged := current && !s.dead
	if current {
		s.dead = true
	}
	s.mu.Unlock()
	if flagged {
		log.Warn().Err(err).Msg("Browser engine crash detected, it will be relaunched on next use")
	} else if !current {
		log.Debug().Err(err).Msg("Crash reported for a browser engine that was already replaced")
	}
	return true
}

// Close shuts down the engine. Errors are logged and swallowed.
func (s *Session) Close() {
	s.mu.Lock()
	engine := s.engine
	s.engine = nil
	s.closed = true
	s.mu.Unlock()
	if engine != nil {
		s.closeEngine(engine)
	}
}

func (s *Session) closeEngine(engine Engine) {
	if err := engine.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close browser engine")
	}
}
