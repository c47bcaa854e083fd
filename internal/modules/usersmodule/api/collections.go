package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/api"
	"github.com/mantonx/medialibrary/internal/database"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/service"
	"gorm.io/gorm"
)

type collectionRequest struct {
	Movie  *uint                      `json:"movie"`
	Series *uint                      `json:"series"`
	Game   *uint                      `json:"game"`
	Status *database.CollectionStatus `json:"status"`
}

func (r collectionRequest) mediaID(kind string) *uint {
	switch kind {
	case "series":
		return r.Series
	case "game":
		return r.Game
	default:
		return r.Movie
	}
}

// CollectionHandler serves one collection table
type CollectionHandler[T any, PT service.CollectionModel[T]] struct {
	entries *service.CollectionService[T, PT]
}

// NewCollectionHandler creates a collection handler
func NewCollectionHandler[T any, PT service.CollectionModel[T]](entries *service.CollectionService[T, PT]) *CollectionHandler[T, PT] {
	return &CollectionHandler[T, PT]{entries: entries}
}

// List handles GET; user and the media kind key narrow the results
func (h *CollectionHandler[T, PT]) List(c *gin.Context) {
	kind := h.entries.Kind()
	query := h.entries.Query(c.Request.Context())
	if user := c.Query("user"); user != "" {
		query = query.Where("user_id = ?", user)
	}
	if media := c.Query(kind.Name); media != "" {
		query = query.Where(kind.ForeignKey+" = ?", media)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	api.RespondPage[T](c, query, func(q *gorm.DB) *gorm.DB { return q.Order("id") })
}

// Get handles GET /:id
func (h *CollectionHandler[T, PT]) Get(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.entries.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Create handles POST
func (h *CollectionHandler[T, PT]) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	kind := h.entries.Kind()

	var req collectionRequest
	if !bind(c, &req) {
		return
	}
	mediaID := req.mediaID(kind.Name)
	if mediaID == nil {
		apperrors.HandleValidationError(c, "This field is required.", kind.Name)
		return
	}
	var status database.CollectionStatus
	if req.Status != nil {
		status = *req.Status
	}

	entry, err := h.entries.Create(c.Request.Context(), user.ID, *mediaID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Update handles PUT and PATCH /:id. PUT requires the media key.
func (h *CollectionHandler[T, PT]) Update(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	kind := h.entries.Kind()

	var req collectionRequest
	if !bind(c, &req) {
		return
	}
	upd := service.CollectionUpdate{MediaID: req.mediaID(kind.Name), Status: req.Status}
	if c.Request.Method == http.MethodPut && upd.MediaID == nil {
		apperrors.HandleValidationError(c, "This field is required.", kind.Name)
		return
	}

	entry, err := h.entries.Update(c.Request.Context(), user.ID, id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete handles DELETE /:id
func (h *CollectionHandler[T, PT]) Delete(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)

	if err := h.entries.Delete(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Register mounts the collection routes on group
func (h *CollectionHandler[T, PT]) Register(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}
