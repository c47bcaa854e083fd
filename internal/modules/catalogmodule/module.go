package catalogmodule

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/base"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/api"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/repository"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/service"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	// ModuleID is the unique identifier for the catalog module
	ModuleID = "system.catalog"

	// ModuleName is the display name for the catalog module
	ModuleName = "Catalog"
)

// Module serves the media catalog and its ratings
type Module struct {
	*base.BaseModule

	catalog *service.CatalogService
	auth    services.AuthService
}

// Register registers the catalog module with the module system
func Register() {
	modulemanager.Register(NewModule())
}

// NewModule creates an unregistered catalog module
func NewModule() *Module {
	return &Module{BaseModule: base.NewBaseModule(ModuleID, ModuleName, true)}
}

// Dependencies returns module dependencies
func (m *Module) Dependencies() []string {
	return []string{"system.database"}
}

// ProvidedServices lists the services registered by this module
func (m *Module) ProvidedServices() []string {
	return []string{services.CatalogServiceName}
}

// Migrate is a no-op; the database module migrates the whole store
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// RegisterServices creates the catalog service so other modules can look it up during Init
func (m *Module) RegisterServices(db *gorm.DB) error {
	m.SetDB(db)
	m.catalog = service.NewCatalogService(repository.New(db))
	services.RegisterService[services.CatalogService](services.CatalogServiceName, m.catalog)
	return nil
}

// InjectServices picks up the auth service when the users module is enabled
func (m *Module) InjectServices(registered map[string]interface{}) error {
	if auth, ok := registered[services.AuthServiceName].(services.AuthService); ok {
		m.auth = auth
	}
	return nil
}

// Init initializes the catalog module
func (m *Module) Init(db *gorm.DB) error {
	if m.catalog == nil {
		return fmt.Errorf("catalog service not registered")
	}
	if m.auth == nil {
		logger.Warn("auth service unavailable, catalog writes will be rejected")
	}
	m.SetInitialized(true)
	logger.Info("catalog module initialized")
	return nil
}

// Service returns the catalog service
func (m *Module) Service() *service.CatalogService {
	return m.catalog
}

// RegisterRoutes registers HTTP routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	handler := api.NewHandler(m.catalog)
	base.NewBaseRouteRegistrar("/api/catalog", m.BaseModule).RegisterRoutes(router, func(group *gin.RouterGroup) {
		api.RegisterRoutes(group, handler, m.auth)
	})
}
