// Package manager wires the browser session, scan pipeline, job runner and
// queue backend into one ScanManager per process.
package manager

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/browser"
	"github.com/pyneda/consentscan/pkg/passive"
	"github.com/pyneda/consentscan/pkg/report"
	"github.com/pyneda/consentscan/pkg/scan"
	"github.com/pyneda/consentscan/pkg/scan/queue"
	"github.com/pyneda/consentscan/pkg/scan/worker"
	"github.com/rs/zerolog/log"
)

// Config holds everything needed to build a ScanManager
type Config struct {
	Queue     queue.Config
	Session   browser.SessionConfig
	Pipeline  scan.PipelineConfig
	Analyzers scan.AnalyzerFactory
	Notifier  worker.Notifier
	Metrics   *queue.Metrics
}

// ConfigFromViper builds the production configuration
func ConfigFromViper() Config {
	return Config{
		Queue:     queue.ConfigFromViper(),
		Session:   browser.SessionConfigFromViper(),
		Pipeline:  scan.DefaultPipelineConfig(),
		Analyzers: passive.NewAnalyzers,
		Notifier:  worker.LogNotifier{},
		Metrics:   queue.DefaultMetrics(),
	}
}

// ScanManager owns the process wide scanning resources
type ScanManager struct {
	conn     *db.DatabaseConnection
	session  *browser.Session
	pipeline *scan.Pipeline
	runner   *worker.Runner
	queue    queue.JobQueue
	backend  string

	startOnce sync.Once
	stopOnce  sync.Once
	mu        sync.RWMutex
	started   bool
}

// New creates a ScanManager. Nothing runs until Start.
func New(conn *db.DatabaseConnection, cfg Config) (*ScanManager, error) {
	if cfg.Analyzers == nil {
		cfg.Analyzers = passive.NewAnalyzers
	}
	session := browser.NewSession(cfg.Session)
	pipeline := scan.NewPipeline(session, cfg.Analyzers, cfg.Pipeline)
	runner := worker.NewRunner(worker.RunnerConfig{
		Store:    conn,
		Scanner:  pipeline,
		Reports:  conn,
		Notifier: cfg.Notifier,
	})
	jobQueue, err := queue.New(conn, runner, cfg.Queue, cfg.Metrics)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("create %s queue: %w", cfg.Queue.Backend, err)
	}
	backend := cfg.Queue.Backend
	if backend == "" {
		backend = queue.BackendDatabase
	}
	return &ScanManager{
		conn:     conn,
		session:  session,
		pipeline: pipeline,
		runner:   runner,
		queue:    jobQueue,
		backend:  backend,
	}, nil
}

// Start starts the worker loop
func (sm *ScanManager) Start() error {
	var startErr error
	sm.startOnce.Do(func() {
		log.Info().Str("backend", sm.backend).Msg("Starting ScanManager")
		if err := sm.queue.Start(); err != nil {
			startErr = err
			return
		}
		sm.mu.Lock()
		sm.started = true
		sm.mu.Unlock()
		log.Info().Msg("ScanManager started")
	})
	return startErr
}

// Stop waits for running jobs, then releases the dispatcher and the browser
func (sm *ScanManager) Stop() {
	sm.stopOnce.Do(func() {
		log.Info().Msg("Stopping ScanManager")
		sm.queue.Stop()
		if closer, ok := sm.queue.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close queue dispatcher")
			}
		}
		sm.session.Close()

		sm.mu.Lock()
		sm.started = false
		sm.mu.Unlock()
		log.Info().Msg("ScanManager stopped")
	})
}

// Queue returns the job facade
func (sm *ScanManager) Queue() queue.JobQueue {
	return sm.queue
}

// Backend returns the configured queue backend name
func (sm *ScanManager) Backend() string {
	return sm.backend
}

// IsStarted reports whether the worker loop is running
func (sm *ScanManager) IsStarted() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.started
}

// ScanNow runs the pipeline synchronously without queueing, used by the CLI
func (sm *ScanManager) ScanNow(ctx context.Context, url string) (*report.ScanResult, error) {
	return sm.pipeline.Run(ctx, url)
}
