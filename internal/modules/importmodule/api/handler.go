// Package api exposes the import job over HTTP
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/api"
	"github.com/mantonx/medialibrary/internal/database"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/events"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
)

// matches job.TriggerManual
const triggerManual = "manual"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler serves import triggers, run history and the live event stream
type Handler struct {
	ctx      context.Context
	importer services.ImportService
	db       *gorm.DB
	bus      events.EventBus
	upgrader websocket.Upgrader
	log      hclog.Logger
}

// NewHandler creates a handler. Triggered runs inherit ctx, so cancelling it
// stops them. bus may be nil, in which case the websocket is unavailable.
func NewHandler(ctx context.Context, importer services.ImportService, db *gorm.DB, bus events.EventBus) *Handler {
	return &Handler{
		ctx:      ctx,
		importer: importer,
		db:       db,
		bus:      bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Named("import-api"),
	}
}

// RegisterRoutes mounts the import endpoints. Everything is staff only.
func RegisterRoutes(group *gin.RouterGroup, handler *Handler, auth services.AuthService) {
	group.Use(middleware.RequireAuth(auth), middleware.RequireStaff())

	group.POST("/run", handler.TriggerRun)
	group.GET("/runs", handler.ListRuns)
	group.GET("/runs/:id", handler.GetRun)
	group.GET("/ws", handler.Stream)
}

// TriggerRun starts an import in the background
func (h *Handler) TriggerRun(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if err := h.importer.Start(h.ctx, triggerManual); err != nil {
		if errors.Is(err, services.ErrImportRunning) {
			apperrors.NewConflictError("An import is already running").ToGinResponse(c)
			return
		}
		apperrors.HandleError(c, err)
		return
	}

	h.log.Info("manual import triggered", "user", user.Username)
	api.Detail(c, http.StatusAccepted, "Import started")
}

// ListRuns returns the run history, newest first
func (h *Handler) ListRuns(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&database.ImportRun{})
	api.RespondPage[database.ImportRun](c, query, func(q *gorm.DB) *gorm.DB {
		return q.Order("id DESC")
	})
}

// GetRun returns one import run
func (h *Handler) GetRun(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	var run database.ImportRun
	err := h.db.WithContext(c.Request.Context()).First(&run, id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		apperrors.HandleNotFound(c, "Import run", c.Param("id"))
		return
	case err != nil:
		apperrors.HandleDatabaseError(c, "get import run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// Stream upgrades to a websocket and forwards import events as JSON until
// the client goes away
func (h *Handler) Stream(c *gin.Context) {
	if h.bus == nil {
		apperrors.NewInternalError("Event stream unavailable", nil).ToGinResponse(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(events.EventFilter{Types: events.ImportEventTypes})
	defer h.bus.Unsubscribe(sub)

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-h.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done when the connection drops
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
