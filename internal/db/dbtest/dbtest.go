// Package dbtest opens throwaway sqlite databases for tests
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/celestiaorg/geoimport/internal/db"
)

// Open returns a migrated in-memory database private to the test.
// It is closed when the test finishes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_json=1", uuid.NewString())
	gdb, err := db.New(db.Options{
		Driver:     db.DriverSQLite,
		SQLitePath: dsn,
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err, "Failed to create in-memory database")

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
