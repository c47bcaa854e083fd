package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

// AllModels lists every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&Person{},
		&MediaGenre{},
		&StaffRole{},
		&Company{},
		&Photo{},
		&Movie{},
		&Series{},
		&Game{},
		&Staff{},
		&Video{},
		&User{},
		&MovieRating{},
		&SeriesRating{},
		&GameRating{},
		&UserMovieCollection{},
		&UserSeriesCollection{},
		&UserGameCollection{},
		&ImportRun{},
	}
}

// Open connects to the database described by cfg. Schema migration is left
// to the database module.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		path := cfg.DatabasePath
		if path == "" {
			path = filepath.Join(cfg.DataDir, "medialibrary.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dialector = sqlite.Open(path + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(cfg.LogQueries),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.Type == "sqlite" {
		// one writer at a time keeps sqlite from returning SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return conn, nil
}

// Initialize opens the configured database and makes it the process-wide connection
func Initialize(cfg config.DatabaseConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	SetDB(conn)
	logger.Info("database connected", "type", cfg.Type)
	return nil
}

// GetDB returns the process-wide connection, or nil before Initialize
func GetDB() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

// SetDB replaces the process-wide connection. Tests use it to inject an in-memory store.
func SetDB(conn *gorm.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	db = conn
}

// Close releases the process-wide connection
func Close() error {
	dbMu.Lock()
	defer dbMu.Unlock()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

func newGormLogger(logQueries bool) gormlogger.Interface {
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	writer := logger.Named("gorm").StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
	return gormlogger.New(writer, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
