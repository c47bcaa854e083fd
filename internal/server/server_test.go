package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/database/dbtest"
	"github.com/mantonx/medialibrary/internal/modules/modulemanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubModule struct {
	id     string
	health modulemanager.HealthState
}

func (m *stubModule) ID() string                 { return m.id }
func (m *stubModule) Name() string               { return m.id }
func (m *stubModule) Core() bool                 { return false }
func (m *stubModule) Migrate(db *gorm.DB) error  { return nil }
func (m *stubModule) Init(db *gorm.DB) error     { return nil }
func (m *stubModule) Dependencies() []string     { return nil }
func (m *stubModule) ProvidedServices() []string { return nil }
func (m *stubModule) RequiredServices() []string { return nil }

func (m *stubModule) HealthCheck(ctx context.Context) modulemanager.HealthStatus {
	return modulemanager.HealthStatus{Status: m.health, Message: "stub"}
}

func (m *stubModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/stub", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
}

func newRouter(t *testing.T, health modulemanager.HealthState) *gin.Engine {
	t.Helper()
	db := dbtest.New(t)
	registry := modulemanager.NewRegistry()
	registry.Register(&stubModule{id: "stub", health: health})
	require.NoError(t, registry.LoadAll(db, nil))
	return NewRouter(config.DefaultConfig(), registry, db)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthAggregatesModules(t *testing.T) {
	r := newRouter(t, modulemanager.HealthStateDegraded)
	w := serve(r, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, modulemanager.HealthStateDegraded, body.Status)
	assert.Equal(t, "ok", body.Database)
	assert.Equal(t, "stub", body.Modules["stub"].Message)
	assert.Positive(t, body.System.CPUs)

	r = newRouter(t, modulemanager.HealthStateUnhealthy)
	w = serve(r, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouterServesModulesAndMetrics(t *testing.T) {
	r := newRouter(t, modulemanager.HealthStateHealthy)

	w := serve(r, http.MethodGet, "/api/stub")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medialibrary_api_requests_total")

	w = serve(r, http.MethodOptions, "/api/stub")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = serve(r, http.MethodGet, "/api")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"path":"/api/stub"`)
}
