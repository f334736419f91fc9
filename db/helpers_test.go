package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func newTestDatabase(t *testing.T) *DatabaseConnection {
	t.Helper()
	conn, err := NewDatabaseConnection(sqlite.Open(filepath.Join(t.TempDir(), "db-test.db")))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
