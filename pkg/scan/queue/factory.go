package queue

import (
	"fmt"

	"github.com/pyneda/consentscan/db"
)

// New builds the backend named by config.Backend
func New(conn *db.DatabaseConnection, runner JobRunner, config Config, metrics *Metrics) (JobQueue, error) {
	config = config.withDefaults()
	switch config.Backend {
	case BackendDatabase:
		return NewPollingQueue(conn, runner, config, metrics), nil
	case BackendJetStream:
		jsConfig := JetStreamConfigFromViper()
		jsConfig.MaxAckPending = config.MaxConcurrent
		dispatcher, err := NewJetStreamDispatcher(jsConfig)
		if err != nil {
			return nil, err
		}
		return NewDispatchQueue(conn, dispatcher, runner, config, metrics), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", config.Backend)
	}
}
