// Package modulemanager provides the module system: registration,
// dependency ordering, service wiring and lifecycle.
package modulemanager

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/thejerf/suture/v4"
	"gorm.io/gorm"
)

// Module defines the interface that all modules must implement
type Module interface {
	ID() string                // Unique identifier for the module
	Name() string              // Display name for the module
	Core() bool                // Core modules cannot be disabled
	Migrate(db *gorm.DB) error // Run database migrations
	Init(db *gorm.DB) error    // Initialize the module
}

// RouteRegistrar is an optional interface for modules that serve HTTP routes
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// ServiceRegistrar is an optional interface for modules that register services early
type ServiceRegistrar interface {
	// RegisterServices is called before any Init() so dependents can find the services
	RegisterServices(db *gorm.DB) error
}

// ServiceInjector is an optional interface for modules that need services injected
type ServiceInjector interface {
	// InjectServices is called after registration and before Init().
	// The map contains every registered service keyed by name.
	InjectServices(services map[string]interface{}) error
}

// BackgroundRunner is an optional interface for modules with long-running work.
// The returned services are added to the supervisor tree.
type BackgroundRunner interface {
	BackgroundServices() []suture.Service
}

// ConfigReloadable is an optional interface for modules that pick up
// configuration changes without a restart
type ConfigReloadable interface {
	ReloadConfig(cfg *config.Config) error
}

// HealthChecker is an optional interface for modules that can report health status
type HealthChecker interface {
	HealthCheck(ctx context.Context) HealthStatus
}

// Shutdowner is an optional interface for modules that release resources on exit
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// HealthStatus represents the health of a module
type HealthStatus struct {
	Status      HealthState            `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthState represents the state of a module's health
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
	HealthStateUnknown   HealthState = "unknown"
)
