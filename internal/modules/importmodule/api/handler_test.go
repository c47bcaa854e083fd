package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/database/dbtest"
	"github.com/mantonx/medialibrary/internal/events"
	"github.com/mantonx/medialibrary/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenAuth struct {
	db *gorm.DB
}

func (a tokenAuth) Authenticate(ctx context.Context, token string) (*database.User, error) {
	var user database.User
	if err := a.db.WithContext(ctx).Where("username = ?", token).First(&user).Error; err != nil {
		return nil, errors.New("invalid token")
	}
	return &user, nil
}

type fakeImporter struct {
	running  atomic.Bool
	triggers chan string
}

func (f *fakeImporter) Run(ctx context.Context, trigger string) (*database.ImportRun, error) {
	f.triggers <- trigger
	return &database.ImportRun{Trigger: trigger, Status: database.ImportStatusSucceeded}, nil
}

func (f *fakeImporter) Start(ctx context.Context, trigger string) error {
	if !f.running.CompareAndSwap(false, true) {
		return services.ErrImportRunning
	}
	go f.Run(ctx, trigger)
	return nil
}

func (f *fakeImporter) Running() bool {
	return f.running.Load()
}

type env struct {
	db       *gorm.DB
	bus      *events.Bus
	importer *fakeImporter
	router   *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)
	require.NoError(t, db.Create(&database.User{Email: "root@example.com", Username: "root", PasswordHash: "x", IsStaff: true}).Error)
	require.NoError(t, db.Create(&database.User{Email: "ann@example.com", Username: "ann", PasswordHash: "x"}).Error)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	e := &env{db: db, bus: events.NewEventBus(8), importer: &fakeImporter{triggers: make(chan string, 1)}}
	e.router = gin.New()
	RegisterRoutes(e.router.Group("/api/import"), NewHandler(ctx, e.importer, db, e.bus), tokenAuth{db: db})
	return e
}

func (e *env) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestTriggerRunRequiresStaff(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/api/import/run", "").Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/api/import/run", "ann").Code)
}

func TestTriggerRun(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/import/run", "root")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"detail":"Import started"}`, w.Body.String())

	select {
	case trigger := <-e.importer.triggers:
		assert.Equal(t, "manual", trigger)
	case <-time.After(time.Second):
		t.Fatal("import was not started")
	}

	// the slot is still held, so a second trigger is refused
	w = e.do(http.MethodPost, "/api/import/run", "root")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, e.importer.triggers, 0)
}

func TestListRunsNewestFirst(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	for _, trigger := range []string{"startup", "scheduled", "manual"} {
		require.NoError(t, e.db.Create(&database.ImportRun{Trigger: trigger, Status: database.ImportStatusSucceeded, StartedAt: now}).Error)
	}

	w := e.do(http.MethodGet, "/api/import/runs", "root")
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Count   int                  `json:"count"`
		Results []database.ImportRun `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Count)
	require.Len(t, page.Results, 3)
	assert.Equal(t, "manual", page.Results[0].Trigger)
	assert.Equal(t, "startup", page.Results[2].Trigger)

	w = e.do(http.MethodGet, "/api/import/runs/1", "root")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trigger":"startup"`)

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/import/runs/99", "root").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/import/runs/abc", "root").Code)
}

func TestStreamForwardsImportEvents(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/import/ws"
	header := http.Header{"Authorization": []string{"Bearer root"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return e.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	e.bus.Publish(events.NewEvent("scan.started", "test", nil))
	e.bus.Publish(events.NewEvent(events.EventImportCompleted, "system.import", map[string]interface{}{"run_id": 7}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.EventImportCompleted, got.Type)
	assert.Equal(t, float64(7), got.Data["run_id"])

	conn.Close()
	assert.Eventually(t, func() bool { return e.bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStreamRejectsAnonymous(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/import/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
