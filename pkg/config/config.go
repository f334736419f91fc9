package config

import (
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadConfig applies defaults, environment overrides (CONSENTSCAN_QUEUE_BACKEND
// for queue.backend) and the config file. Without an explicit file it looks for
// config.yaml in /etc/consentscan, $HOME/.consentscan and the working directory.
func LoadConfig(cfgFile string) {
	SetDefaultConfig()
	viper.SetEnvPrefix("consentscan")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/consentscan/")
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".consentscan"))
		}
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug().Msg("Config file not found, using defaults")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
		return
	}
	log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
}

func SetDefaultConfig() {
	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.pretty", true)
	viper.SetDefault("logging.file", "")

	// Database
	viper.SetDefault("db.type", "sqlite")
	viper.SetDefault("db.sqlite.path", "consentscan.db")
	viper.SetDefault("db.postgres.dsn", "")
	viper.SetDefault("db.max_idle_conns", 10)
	viper.SetDefault("db.max_open_conns", 40)
	viper.SetDefault("db.conn_max_lifetime", time.Hour)

	// Queue
	viper.SetDefault("queue.backend", "database")
	viper.SetDefault("queue.max_concurrent", 1)
	viper.SetDefault("queue.poll_interval", 5*time.Second)
	viper.SetDefault("queue.estimated_job_duration", 45*time.Second)
	viper.SetDefault("queue.default_locale", "en")
	viper.SetDefault("queue.recovery.stale_after", 30*time.Minute)
	viper.SetDefault("queue.jetstream.url", "nats://127.0.0.1:4222")
	viper.SetDefault("queue.jetstream.stream", "CONSENTSCAN_JOBS")
	viper.SetDefault("queue.jetstream.subject_prefix", "consentscan.jobs")
	viper.SetDefault("queue.jetstream.durable_prefix", "consentscan-worker")
	viper.SetDefault("queue.jetstream.lanes", 5)
	viper.SetDefault("queue.jetstream.ack_wait", 2*time.Minute)
	viper.SetDefault("queue.jetstream.fetch_wait", 250*time.Millisecond)

	// Browser
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.bin", "")
	viper.SetDefault("browser.no_sandbox", true)
	viper.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("browser.viewport.width", 1920)
	viper.SetDefault("browser.viewport.height", 1080)
	viper.SetDefault("browser.locale", "en-US")
	viper.SetDefault("browser.launch_timeout", 30*time.Second)
	viper.SetDefault("browser.crash_signatures", []string{})

	// Navigation
	viper.SetDefault("navigation.timeout", 30*time.Second)
	viper.SetDefault("navigation.consent_settle", 2*time.Second)
	viper.SetDefault("navigation.proxy", "")

	// API
	viper.SetDefault("api.listen", ":8080")
	viper.SetDefault("api.metrics.enabled", true)
	viper.SetDefault("api.metrics.path", "/metrics")
}
