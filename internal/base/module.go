// Package base holds the parts every feature module shares
package base

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"gorm.io/gorm"
)

// BaseModule implements the identity half of modulemanager.Module plus a
// database-backed health check. Feature modules embed it.
type BaseModule struct {
	id          string
	name        string
	core        bool
	initialized bool
	db          *gorm.DB
	mu          sync.RWMutex
}

// NewBaseModule creates a new base module with common properties
func NewBaseModule(id, name string, core bool) *BaseModule {
	return &BaseModule{id: id, name: name, core: core}
}

func (m *BaseModule) ID() string   { return m.id }
func (m *BaseModule) Name() string { return m.name }
func (m *BaseModule) Core() bool   { return m.core }

// IsInitialized reports whether SetInitialized(true) was called
func (m *BaseModule) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SetInitialized marks the module as initialized
func (m *BaseModule) SetInitialized(initialized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = initialized
}

// SetDB sets the database connection
func (m *BaseModule) SetDB(db *gorm.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db
}

// GetDB returns the database connection
func (m *BaseModule) GetDB() *gorm.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// HealthCheck reports unhealthy until Init has run and while the database is unreachable
func (m *BaseModule) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := modulemanager.HealthStatus{Status: modulemanager.HealthStateHealthy, LastChecked: time.Now()}
	if !m.IsInitialized() {
		status.Status = modulemanager.HealthStateUnhealthy
		status.Message = "module is not initialized"
		return status
	}

	if db := m.GetDB(); db != nil {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status.Status = modulemanager.HealthStateUnhealthy
			status.Message = "database ping failed: " + err.Error()
		}
	}
	return status
}

// BaseRouteRegistrar mounts a module's routes under one path prefix
type BaseRouteRegistrar struct {
	basePath string
	module   *BaseModule
}

// NewBaseRouteRegistrar creates a new route registrar
func NewBaseRouteRegistrar(basePath string, module *BaseModule) *BaseRouteRegistrar {
	return &BaseRouteRegistrar{basePath: basePath, module: module}
}

// RegisterRoutes creates the group and hands it to routes. Uninitialized modules are skipped.
func (r *BaseRouteRegistrar) RegisterRoutes(router *gin.Engine, routes func(*gin.RouterGroup)) {
	if !r.module.IsInitialized() {
		logger.Warn("skipping route registration for uninitialized module", "module", r.module.ID())
		return
	}

	routes(router.Group(r.basePath))
	logger.Debug("routes registered", "module", r.module.ID(), "prefix", r.basePath)
}
