package server

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"gorm.io/gorm"
)

const healthTimeout = 5 * time.Second

type healthHandler struct {
	registry *modulemanager.ModuleRegistry
	db       *gorm.DB
	started  time.Time
}

func newHealthHandler(registry *modulemanager.ModuleRegistry, db *gorm.DB) *healthHandler {
	return &healthHandler{registry: registry, db: db, started: time.Now()}
}

type systemInfo struct {
	Goroutines    int     `json:"goroutines"`
	CPUs          int     `json:"cpus"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
	MemoryUsedMB  uint64  `json:"memory_used_mb,omitempty"`
	Load1         float64 `json:"load1,omitempty"`
}

type healthResponse struct {
	Status   modulemanager.HealthState             `json:"status"`
	Uptime   string                                `json:"uptime"`
	Database string                                `json:"database"`
	Modules  map[string]modulemanager.HealthStatus `json:"modules"`
	System   systemInfo                            `json:"system"`
}

// Check handles GET /api/health. Any unhealthy part turns the response into a 503.
func (h *healthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:   modulemanager.HealthStateHealthy,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Database: "ok",
		Modules:  h.registry.HealthChecks(ctx),
		System:   collectSystemInfo(ctx),
	}

	if err := h.pingDatabase(ctx); err != nil {
		resp.Database = err.Error()
		resp.Status = modulemanager.HealthStateUnhealthy
	}
	for _, status := range resp.Modules {
		switch status.Status {
		case modulemanager.HealthStateUnhealthy:
			resp.Status = modulemanager.HealthStateUnhealthy
		case modulemanager.HealthStateDegraded:
			if resp.Status == modulemanager.HealthStateHealthy {
				resp.Status = modulemanager.HealthStateDegraded
			}
		}
	}

	code := http.StatusOK
	if resp.Status == modulemanager.HealthStateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (h *healthHandler) pingDatabase(ctx context.Context) error {
	if h.db == nil {
		return errNoDatabase
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// collectSystemInfo reports host figures; values the platform cannot provide are left out
func collectSystemInfo(ctx context.Context) systemInfo {
	info := systemInfo{Goroutines: runtime.NumGoroutine(), CPUs: runtime.NumCPU()}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryPercent = vm.UsedPercent
		info.MemoryUsedMB = vm.Used / (1024 * 1024)
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1 = avg.Load1
	}
	return info
}

var errNoDatabase = errors.New("database not initialized")
