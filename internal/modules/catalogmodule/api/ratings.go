package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/api"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/service"
	"gorm.io/gorm"
)

// ratingRequest is the body of rating writes; only the key matching the
// media kind is read
type ratingRequest struct {
	Movie  *uint `json:"movie"`
	Series *uint `json:"series"`
	Game   *uint `json:"game"`
	Rating *int  `json:"rating"`
}

func (r ratingRequest) mediaID(kind string) *uint {
	switch kind {
	case "series":
		return r.Series
	case "game":
		return r.Game
	default:
		return r.Movie
	}
}

// RatingHandler serves one rating table
type RatingHandler[T any, PT service.RatingModel[T]] struct {
	ratings *service.RatingService[T, PT]
}

// NewRatingHandler creates a handler for ratings
func NewRatingHandler[T any, PT service.RatingModel[T]](ratings *service.RatingService[T, PT]) *RatingHandler[T, PT] {
	return &RatingHandler[T, PT]{ratings: ratings}
}

// List handles GET. Results can be narrowed by user and by media item.
func (h *RatingHandler[T, PT]) List(c *gin.Context) {
	kind := h.ratings.Kind()
	query := h.ratings.Query(c.Request.Context())
	if user := c.Query("user"); user != "" {
		query = query.Where("user_id = ?", user)
	}
	if media := c.Query(kind.Name); media != "" {
		query = query.Where(kind.ForeignKey+" = ?", media)
	}
	api.RespondPage[T](c, query, func(q *gorm.DB) *gorm.DB { return q.Order("id") })
}

// Get handles GET /:id
func (h *RatingHandler[T, PT]) Get(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	rating, err := h.ratings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

// Create handles POST
func (h *RatingHandler[T, PT]) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	kind := h.ratings.Kind()

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleValidationError(c, "Invalid request body", "")
		return
	}
	mediaID := req.mediaID(kind.Name)
	if mediaID == nil {
		apperrors.HandleValidationError(c, "This field is required.", kind.Name)
		return
	}
	if req.Rating == nil {
		apperrors.HandleValidationError(c, "This field is required.", "rating")
		return
	}

	rating, err := h.ratings.Create(c.Request.Context(), user.ID, *mediaID, *req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// Update handles PUT and PATCH /:id. PUT requires every field.
func (h *RatingHandler[T, PT]) Update(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)
	kind := h.ratings.Kind()

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.HandleValidationError(c, "Invalid request body", "")
		return
	}
	upd := service.RatingUpdate{MediaID: req.mediaID(kind.Name), Rating: req.Rating}
	if c.Request.Method == http.MethodPut {
		if upd.MediaID == nil {
			apperrors.HandleValidationError(c, "This field is required.", kind.Name)
			return
		}
		if upd.Rating == nil {
			apperrors.HandleValidationError(c, "This field is required.", "rating")
			return
		}
	}

	rating, err := h.ratings.Update(c.Request.Context(), user.ID, id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

// Delete handles DELETE /:id
func (h *RatingHandler[T, PT]) Delete(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)

	if err := h.ratings.Delete(c.Request.Context(), user.ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Register mounts the rating routes on group
func (h *RatingHandler[T, PT]) Register(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}
