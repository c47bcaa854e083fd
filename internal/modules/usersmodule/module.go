package usersmodule

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/base"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/api"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/auth"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/mailer"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/reset"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/service"
	"github.com/mantonx/medialibrary/internal/services"
	"github.com/thejerf/suture/v4"
	"gorm.io/gorm"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	// ModuleID is the unique identifier for the users module
	ModuleID = "system.users"

	// ModuleName is the display name for the users module
	ModuleName = "Users"

	sweepInterval = time.Minute
)

// Module owns accounts, authentication and user collections
type Module struct {
	*base.BaseModule

	users       *service.UserService
	collections *service.Collections
	sweeper     *reset.Sweeper
}

// Register registers the users module with the module system
func Register() {
	modulemanager.Register(NewModule())
}

// NewModule creates an unregistered users module
func NewModule() *Module {
	return &Module{BaseModule: base.NewBaseModule(ModuleID, ModuleName, true)}
}

// Dependencies returns module dependencies
func (m *Module) Dependencies() []string {
	return []string{"system.database", "system.catalog"}
}

// ProvidedServices lists the services registered by this module
func (m *Module) ProvidedServices() []string {
	return []string{services.AuthServiceName}
}

// RequiredServices lists the services this module looks up
func (m *Module) RequiredServices() []string {
	return []string{services.CatalogServiceName}
}

// Migrate is a no-op; users and collections are migrated with the rest of the store
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// RegisterServices builds the user service and publishes it as the auth service
func (m *Module) RegisterServices(db *gorm.DB) error {
	m.SetDB(db)
	cfg := config.Get()

	secret := cfg.Security.JWTSecret
	if secret == "" {
		secret = rand.Text()
		logger.Warn("no JWT secret configured, using an ephemeral one; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenManager(secret, cfg.Security.JWTIssuer, cfg.Security.JWTExpiration)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	catalog, err := services.GetService[services.CatalogService](services.CatalogServiceName)
	if err != nil {
		return fmt.Errorf("users module needs the catalog: %w", err)
	}

	resets := reset.NewStore(cfg.Security.ResetTokenTTL)
	limiter := reset.NewLimiter(cfg.Security.ResetRequestWindow)
	m.sweeper = reset.NewSweeper(resets, limiter, sweepInterval)

	m.users = service.NewUserService(db, service.Options{
		Tokens:  tokens,
		Hasher:  auth.NewHasher(cfg.Security.BcryptCost),
		Mailer:  mailer.New(cfg.Mail),
		Resets:  resets,
		Limiter: limiter,
	})
	m.collections = service.NewCollections(db, catalog)

	services.RegisterService[services.AuthService](services.AuthServiceName, m.users)
	return nil
}

// Init initializes the users module
func (m *Module) Init(db *gorm.DB) error {
	if m.users == nil {
		return fmt.Errorf("user service not registered")
	}
	m.SetInitialized(true)

	cfg := config.Get()
	logger.Info("users module initialized",
		"smtp", cfg.Mail.Host != "",
		"token_ttl", cfg.Security.JWTExpiration,
		"reset_ttl", cfg.Security.ResetTokenTTL)
	return nil
}

// BackgroundServices returns the reset store sweeper
func (m *Module) BackgroundServices() []suture.Service {
	if m.sweeper == nil {
		return nil
	}
	return []suture.Service{m.sweeper}
}

// HealthCheck adds the account count to the base status
func (m *Module) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	status := m.BaseModule.HealthCheck(ctx)
	if status.Status != modulemanager.HealthStateHealthy || m.GetDB() == nil {
		return status
	}
	var count int64
	if err := m.GetDB().WithContext(ctx).Model(&database.User{}).Count(&count).Error; err != nil {
		status.Status = modulemanager.HealthStateUnhealthy
		status.Message = err.Error()
		return status
	}
	status.Details = map[string]interface{}{"users": count}
	return status
}

// Users returns the user service
func (m *Module) Users() *service.UserService {
	return m.users
}

// RegisterRoutes registers HTTP routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	handler := api.NewHandler(m.users)
	base.NewBaseRouteRegistrar("/api/users", m.BaseModule).RegisterRoutes(router, func(group *gin.RouterGroup) {
		api.RegisterRoutes(group, handler, m.collections)
	})
}
