// Package dbtest opens migrated in-memory stores for tests
package dbtest

import (
	"testing"

	"github.com/mantonx/medialibrary/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New returns an in-memory sqlite database with the full schema migrated.
// The pool is pinned to one connection since every new sqlite connection
// would otherwise see its own empty in-memory database.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}
