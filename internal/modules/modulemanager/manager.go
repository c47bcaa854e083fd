package modulemanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/events"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/services"
	"github.com/thejerf/suture/v4"
	"gorm.io/gorm"
)

// ModuleRegistry manages module registration and initialization
type ModuleRegistry struct {
	modules         map[string]Module
	disabledModules map[string]bool
	loaded          []Module // enabled modules in initialization order
	mu              sync.RWMutex
	initialized     bool
}

// NewRegistry returns an empty registry
func NewRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules:         make(map[string]Module),
		disabledModules: make(map[string]bool),
	}
}

// Registry is the global module registry
var Registry = NewRegistry()

// Register adds a module to the global registry
func Register(m Module) {
	Registry.Register(m)
}

// Register adds a module to the registry
func (r *ModuleRegistry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module registered after initialization", "module", m.ID())
	}

	r.modules[m.ID()] = m
	logger.Debug("module registered", "module", m.ID(), "name", m.Name())
}

// LoadAll initializes the global registry's modules
func LoadAll(db *gorm.DB, disabled []string) error {
	return Registry.LoadAll(db, disabled)
}

// LoadAll migrates and initializes all enabled modules in dependency order.
// disabled lists module IDs to skip; disabling a core module is an error.
func (r *ModuleRegistry) LoadAll(db *gorm.DB, disabled []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		logger.Warn("module system already initialized")
		return nil
	}

	for _, id := range disabled {
		r.disabledModules[id] = true
	}

	enabledModules := make(map[string]Module)
	for id, module := range r.modules {
		if r.disabledModules[id] {
			if module.Core() {
				return fmt.Errorf("attempted to disable core module: %s", id)
			}
			logger.Warn("skipping disabled module", "module", id)
			continue
		}
		enabledModules[id] = module
	}

	depGraph, err := BuildDependencyGraph(enabledModules)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}

	initOrder, err := depGraph.GetInitializationOrder()
	if err != nil {
		return fmt.Errorf("failed to determine initialization order: %w", err)
	}
	depGraph.LogDependencyInfo()

	// Phase 1: schemas, so services registered next can rely on their tables
	for _, module := range initOrder {
		if err := module.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", module.Name(), err)
		}
	}

	// Phase 2: early service registration
	for _, module := range initOrder {
		if registrar, ok := module.(ServiceRegistrar); ok {
			if err := registrar.RegisterServices(db); err != nil {
				return fmt.Errorf("failed to register services for %s: %w", module.Name(), err)
			}
		}
	}

	// Phase 3: service injection
	availableServices := gatherAvailableServices()
	for _, module := range initOrder {
		if injector, ok := module.(ServiceInjector); ok {
			if err := injector.InjectServices(availableServices); err != nil {
				return fmt.Errorf("failed to inject services for %s: %w", module.Name(), err)
			}
		}
	}

	// Phase 4: initialization
	for i, module := range initOrder {
		if err := module.Init(db); err != nil {
			events.PublishGlobal(events.ModuleEvent(events.EventModuleError, module.ID(), module.Name(), err))
			return fmt.Errorf("failed to initialize %s: %w", module.Name(), err)
		}
		logger.Info("module loaded", "module", module.ID(), "order", fmt.Sprintf("%d/%d", i+1, len(initOrder)))
		events.PublishGlobal(events.ModuleEvent(events.EventModuleInitialized, module.ID(), module.Name(), nil))
	}

	r.loaded = initOrder
	r.initialized = true
	return nil
}

// DisableModule marks a module as disabled before LoadAll
func (r *ModuleRegistry) DisableModule(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	module, exists := r.modules[id]
	if !exists {
		return fmt.Errorf("module %s not registered", id)
	}
	if module.Core() {
		return fmt.Errorf("cannot disable core module: %s", id)
	}
	r.disabledModules[id] = true
	return nil
}

// GetModule returns a module by ID
func (r *ModuleRegistry) GetModule(id string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, exists := r.modules[id]
	return module, exists
}

// ListModules returns all registered modules sorted by ID
func ListModules() []Module {
	return Registry.ListModules()
}

// ListModules returns all registered modules sorted by ID
func (r *ModuleRegistry) ListModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modules := make([]Module, 0, len(r.modules))
	for _, module := range r.modules {
		modules = append(modules, module)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].ID() < modules[j].ID() })
	return modules
}

// LoadedModules returns the enabled modules in initialization order
func (r *ModuleRegistry) LoadedModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Module(nil), r.loaded...)
}

// RegisterRoutes registers routes for all modules that implement RouteRegistrar
func RegisterRoutes(router *gin.Engine) {
	Registry.RegisterRoutes(router)
}

// RegisterRoutes registers routes for every loaded module that implements RouteRegistrar
func (r *ModuleRegistry) RegisterRoutes(router *gin.Engine) {
	for _, module := range r.LoadedModules() {
		if routeRegistrar, ok := module.(RouteRegistrar); ok {
			logger.Debug("registering routes", "module", module.ID())
			routeRegistrar.RegisterRoutes(router)
		}
	}
}

// BackgroundServices collects the long-running services of every loaded module
func (r *ModuleRegistry) BackgroundServices() []suture.Service {
	var out []suture.Service
	for _, module := range r.LoadedModules() {
		if runner, ok := module.(BackgroundRunner); ok {
			out = append(out, runner.BackgroundServices()...)
		}
	}
	return out
}

// ReloadConfig hands a new configuration to every module that accepts one
func (r *ModuleRegistry) ReloadConfig(cfg *config.Config) error {
	var errs []error
	for _, module := range r.LoadedModules() {
		if reloadable, ok := module.(ConfigReloadable); ok {
			if err := reloadable.ReloadConfig(cfg); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", module.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// HealthChecks runs every module health check. Modules without one report healthy.
func (r *ModuleRegistry) HealthChecks(ctx context.Context) map[string]HealthStatus {
	results := make(map[string]HealthStatus)
	for _, module := range r.LoadedModules() {
		if checker, ok := module.(HealthChecker); ok {
			results[module.ID()] = checker.HealthCheck(ctx)
			continue
		}
		results[module.ID()] = HealthStatus{Status: HealthStateHealthy, LastChecked: time.Now()}
	}
	return results
}

// Shutdown stops loaded modules in reverse initialization order
func (r *ModuleRegistry) Shutdown(ctx context.Context) error {
	loaded := r.LoadedModules()
	var errs []error
	for i := len(loaded) - 1; i >= 0; i-- {
		if s, ok := loaded[i].(Shutdowner); ok {
			if err := s.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", loaded[i].ID(), err))
			}
		}
		// a stopped module no longer backs its services
		if p, ok := loaded[i].(ServiceProvider); ok {
			for _, name := range p.ProvidedServices() {
				services.Unregister(name)
			}
		}
	}
	return errors.Join(errs...)
}

// gatherAvailableServices collects all registered services
func gatherAvailableServices() map[string]interface{} {
	serviceMap := make(map[string]interface{})
	for _, name := range services.List() {
		if service, err := services.Get(name); err == nil {
			serviceMap[name] = service
		}
	}
	return serviceMap
}
