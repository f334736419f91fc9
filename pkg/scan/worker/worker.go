// Package worker runs queued scan jobs: Loop decides when to look for work
// and Runner executes a single claimed job.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TickFunc looks for work. It must not block on job execution.
type TickFunc func(ctx context.Context)

// Loop calls its tick function on a fixed interval and whenever Wake is
// called. Wake-ups arriving while a tick runs collapse into one extra tick.
type Loop struct {
	name     string
	interval time.Duration
	tick     TickFunc
	wake     chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewLoop creates a stopped loop
func NewLoop(name string, interval time.Duration, tick TickFunc) *Loop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Loop{
		name:     name,
		interval: interval,
		tick:     tick,
		wake:     make(chan struct{}, 1),
	}
}

// Start begins the loop. Calling Start on a running loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.started = true
	go l.run(ctx, l.done)
	log.Info().Str("worker", l.name).Dur("interval", l.interval).Msg("Worker loop started")
}

// Stop ends the loop and waits for the current tick to return
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.started = false
	l.mu.Unlock()

	cancel()
	<-done
	log.Info().Str("worker", l.name).Msg("Worker loop stopped")
}

// Wake requests an immediate tick without blocking the caller
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Running reports whether the loop has been started and not stopped
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-l.wake:
		}
		if ctx.Err() != nil {
			return
		}
		l.tick(ctx)
	}
}
