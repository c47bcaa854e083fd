package databasemodule

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestWithTransactionCommitsAndRollsBack(t *testing.T) {
	db := dbtest.New(t)
	tm := NewTransactionManager(db)
	ctx := context.Background()

	require.NoError(t, tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&database.MediaGenre{Name: "Drama"}).Error
	}))

	boom := errors.New("boom")
	err := tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&database.MediaGenre{Name: "Comedy"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var names []string
	require.NoError(t, db.Model(&database.MediaGenre{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"Drama"}, names)
	assert.Equal(t, int64(0), tm.GetStats()["active_transactions"])
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	db := dbtest.New(t)
	tm := NewTransactionManager(db)

	assert.Panics(t, func() {
		_ = tm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&database.MediaGenre{Name: "Horror"})
			panic("kaboom")
		})
	})

	var count int64
	require.NoError(t, db.Model(&database.MediaGenre{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWithTransactionPostgresRollback(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE movies SET title = $1`)).
		WithArgs("New").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tm := NewTransactionManager(gormDB)
	failure := errors.New("later step failed")
	err = tm.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec("UPDATE movies SET title = ?", "New").Error; err != nil {
			return err
		}
		return failure
	})

	assert.ErrorIs(t, err, failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRegistersTransactor(t *testing.T) {
	db := dbtest.New(t)
	m := &Module{}

	require.NoError(t, m.Migrate(db))
	require.NoError(t, m.RegisterServices(db))
	assert.NotNil(t, m.Transactions())
	assert.Equal(t, "healthy", string(m.HealthCheck(context.Background()).Status))
}
