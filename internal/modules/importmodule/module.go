package importmodule

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/base"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/events"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/api"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/feed"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/job"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/reconcile"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/mantonx/medialibrary/internal/services"
	"github.com/thejerf/suture/v4"
	"gorm.io/gorm"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	// ModuleID is the unique identifier for the import module
	ModuleID = "system.import"

	// ModuleName is the display name for the import module
	ModuleName = "Feed Import"
)

// Module owns the feed import job, its scheduler and API
type Module struct {
	*base.BaseModule

	job       *job.Job
	scheduler *job.Scheduler
	bus       events.EventBus
	auth      services.AuthService

	ctx    context.Context
	cancel context.CancelFunc
}

// Register registers the import module with the module system
func Register() {
	modulemanager.Register(NewModule())
}

// NewModule creates an unregistered import module
func NewModule() *Module {
	ctx, cancel := context.WithCancel(context.Background())
	return &Module{
		BaseModule: base.NewBaseModule(ModuleID, ModuleName, false),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Dependencies returns module dependencies
func (m *Module) Dependencies() []string {
	return []string{"system.database", "system.catalog"}
}

// ProvidedServices lists the services registered by this module
func (m *Module) ProvidedServices() []string {
	return []string{services.ImportServiceName}
}

// RequiredServices lists the services this module looks up
func (m *Module) RequiredServices() []string {
	return []string{services.TransactionsService}
}

// Migrate is a no-op; import runs are migrated with the rest of the store
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// RegisterServices wires feed client, reader, engine and job from the current config
func (m *Module) RegisterServices(db *gorm.DB) error {
	m.SetDB(db)
	cfg := config.Get().Import

	tx, err := services.GetService[services.Transactor](services.TransactionsService)
	if err != nil {
		return fmt.Errorf("import module needs the transaction manager: %w", err)
	}

	client := feed.NewClient(cfg.BaseURL, cfg.HTTPTimeout)
	reader := feed.NewReader(client, cfg.TitleType)
	engine := reconcile.NewEngine(tx, reconcile.Options{
		UpdateFields: cfg.UpdateFields,
		BatchSize:    cfg.BatchSize,
	})

	m.bus = events.GetGlobalEventBus()
	m.job = job.New(db, reader, engine, m.bus, cfg.Limit)
	m.scheduler = job.NewScheduler(m.job, cfg.Interval, cfg.RunOnStart)

	services.RegisterService[services.ImportService](services.ImportServiceName, m.job)
	return nil
}

// InjectServices picks up the auth service for the staff-only API
func (m *Module) InjectServices(registered map[string]interface{}) error {
	if auth, ok := registered[services.AuthServiceName].(services.AuthService); ok {
		m.auth = auth
	}
	return nil
}

// Init initializes the import module
func (m *Module) Init(db *gorm.DB) error {
	if m.job == nil {
		return fmt.Errorf("import job not registered")
	}
	if m.auth == nil {
		logger.Warn("auth service unavailable, import API will reject all requests")
	}
	m.SetInitialized(true)

	cfg := config.Get().Import
	logger.Info("import module initialized",
		"enabled", cfg.Enabled,
		"limit", cfg.Limit,
		"interval", cfg.Interval,
		"title_type", cfg.TitleType)
	return nil
}

// BackgroundServices returns the scheduler when periodic imports are enabled
func (m *Module) BackgroundServices() []suture.Service {
	if !config.Get().Import.Enabled || m.scheduler == nil {
		return nil
	}
	return []suture.Service{m.scheduler}
}

// ReloadConfig applies limit and interval changes without a restart.
// Feed URL, batch size and update fields take effect on the next start.
func (m *Module) ReloadConfig(cfg *config.Config) error {
	if m.job == nil {
		return nil
	}
	if m.job.Limit() != cfg.Import.Limit {
		logger.Info("import limit changed", "old", m.job.Limit(), "new", cfg.Import.Limit)
		m.job.SetLimit(cfg.Import.Limit)
	}
	if m.scheduler.Interval() != cfg.Import.Interval {
		logger.Info("import interval changed", "old", m.scheduler.Interval(), "new", cfg.Import.Interval)
		m.scheduler.SetInterval(cfg.Import.Interval)
	}
	return nil
}

// HealthCheck reports the outcome of the latest import run
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := m.BaseModule.HealthCheck(ctx)
	if status.Status != modulemanager.HealthStateHealthy || m.GetDB() == nil {
		return status
	}

	var last database.ImportRun
	err := m.GetDB().WithContext(ctx).
		Where("status <> ?", database.ImportStatusRunning).
		Order("id DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		status.Status = modulemanager.HealthStateUnhealthy
		status.Message = err.Error()
		return status
	}

	status.Details = map[string]interface{}{"running": m.job.Running(), "limit": m.job.Limit()}
	if last.ID != 0 {
		status.Details["last_run"] = last.ID
		status.Details["last_status"] = last.Status
		if last.Status == database.ImportStatusFailed {
			status.Status = modulemanager.HealthStateDegraded
			status.Message = "last import failed: " + last.Error
		}
	}
	return status
}

// Job returns the import job
func (m *Module) Job() *job.Job {
	return m.job
}

// RegisterRoutes registers HTTP routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	handler := api.NewHandler(m.ctx, m.job, m.GetDB(), m.bus)
	base.NewBaseRouteRegistrar("/api/import", m.BaseModule).RegisterRoutes(router, func(group *gin.RouterGroup) {
		api.RegisterRoutes(group, handler, m.auth)
	})
}

// Shutdown cancels manual runs and closes live streams
func (m *Module) Shutdown(ctx context.Context) error {
	m.cancel()
	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	for m.job != nil && m.job.Running() && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
