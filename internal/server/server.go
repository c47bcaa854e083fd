// Package server assembles the HTTP router: shared middleware, module routes,
// health and metrics endpoints.
package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/config"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// NewRouter builds the engine serving every loaded module of registry
func NewRouter(cfg *config.Config, registry *modulemanager.ModuleRegistry, db *gorm.DB) *gin.Engine {
	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(
		apperrors.RequestIDMiddleware(),
		apperrors.RecoveryMiddleware(),
		middleware.RequestLogger(),
		middleware.ErrorLogger(),
	)
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
	if cfg.Server.EnableCORS {
		r.Use(cors())
	}

	health := newHealthHandler(registry, db)
	r.GET("/api/health", health.Check)

	registry.RegisterRoutes(r)

	r.GET("/api", routeIndex(r))
	r.NoRoute(func(c *gin.Context) {
		apperrors.NewNotFoundError("Route", c.Request.URL.Path).ToGinResponse(c)
	})
	return r
}

// NewHTTPServer wraps handler in an http.Server using the configured timeouts
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+apperrors.RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type routeInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// routeIndex lists the registered endpoints
func routeIndex(r *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		routes := r.Routes()
		out := make([]routeInfo, 0, len(routes))
		for _, route := range routes {
			out = append(out, routeInfo{Method: route.Method, Path: route.Path})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Path != out[j].Path {
				return out[i].Path < out[j].Path
			}
			return out[i].Method < out[j].Method
		})
		c.JSON(http.StatusOK, gin.H{"routes": out})
	}
}
