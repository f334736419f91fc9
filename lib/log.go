package lib

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LogTimeFormat = "2006-01-02T15:04:05.000"
)

// LogOptions controls how the global logger is built
type LogOptions struct {
	Level   string
	Pretty  bool
	File    string
	NoColor bool
}

func consoleWriter(noColor bool) io.Writer {
	if runtime.GOOS == "windows" {
		return zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: LogTimeFormat, NoColor: noColor}
	}
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: LogTimeFormat, NoColor: noColor}
}

// SetupLogging configures the global zerolog logger. Pretty output goes through
// the console writer, otherwise JSON lines are written to stdout. When a file is
// given, records are written to both.
func SetupLogging(opts LogOptions) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if opts.Pretty {
		writers = append(writers, consoleWriter(opts.NoColor))
	} else {
		writers = append(writers, os.Stdout)
	}

	if opts.File != "" {
		logFile, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Str("file", opts.File).Msg("Error setting up log file")
		} else {
			writers = append(writers, logFile)
		}
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
}

