package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyneda/consentscan/db"
	"github.com/pyneda/consentscan/pkg/scan/manager"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// newScanManager builds a manager from configuration without starting it
func newScanManager(logger zerolog.Logger) *manager.ScanManager {
	sm, err := manager.New(db.Connection(), manager.ConfigFromViper())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scan manager")
	}
	return sm
}

// waitForSignal blocks until SIGINT or SIGTERM
func waitForSignal(logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func exitOnError(err error, msg string) {
	if err != nil {
		log.Error().Err(err).Msg(msg)
		os.Exit(1)
	}
}
