package databasemodule

import (
	"context"
	"fmt"
	"time"

	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
)

// Auto-register the module when imported
func init() {
	modulemanager.Register(&Module{})
}

const (
	ModuleID   = "system.database"
	ModuleName = "Database"
)

// Module owns the schema and hands out the transaction manager
type Module struct {
	db           *gorm.DB
	transactions *TransactionManager
}

func (m *Module) ID() string   { return ModuleID }
func (m *Module) Name() string { return ModuleName }
func (m *Module) Core() bool   { return true }

// ProvidedServices lists the services registered by this module
func (m *Module) ProvidedServices() []string {
	return []string{services.TransactionsService}
}

// Migrate creates or updates every table of the store
func (m *Module) Migrate(db *gorm.DB) error {
	logger.Info("migrating database schema")
	if err := db.AutoMigrate(database.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// RegisterServices publishes the transaction manager
func (m *Module) RegisterServices(db *gorm.DB) error {
	m.db = db
	m.transactions = NewTransactionManager(db)
	services.RegisterService[services.Transactor](services.TransactionsService, m.transactions)
	return nil
}

func (m *Module) Init(db *gorm.DB) error {
	return nil
}

// Transactions returns the module's transaction manager
func (m *Module) Transactions() *TransactionManager {
	return m.transactions
}

// HealthCheck pings the database
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := modulemanager.HealthStatus{LastChecked: time.Now()}
	if m.db == nil {
		status.Status = modulemanager.HealthStateUnknown
		return status
	}

	sqlDB, err := m.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status.Status = modulemanager.HealthStateUnhealthy
		status.Message = err.Error()
		return status
	}

	status.Status = modulemanager.HealthStateHealthy
	status.Details = m.transactions.GetStats()
	return status
}
