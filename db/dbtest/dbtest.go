// Package dbtest opens throwaway databases for tests of packages built on db.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/pyneda/consentscan/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// NewDatabase opens a migrated sqlite database in a temporary directory
// that is closed when the test finishes.
func NewDatabase(t testing.TB) *db.DatabaseConnection {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consentscan-test.db")
	conn, err := db.NewDatabaseConnection(sqlite.Open(path))
	require.NoError(t, err, "open test database")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
