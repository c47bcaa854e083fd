// Package api serves the catalog over HTTP
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/api"
	"github.com/mantonx/medialibrary/internal/database"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	catalogerrors "github.com/mantonx/medialibrary/internal/modules/catalogmodule/errors"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/filters"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/repository"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/service"
	"gorm.io/gorm"
)

// Handler provides HTTP handlers for catalog reads
type Handler struct {
	catalog *service.CatalogService
	repo    *repository.Repository
}

// NewHandler creates a new API handler
func NewHandler(catalog *service.CatalogService) *Handler {
	return &Handler{catalog: catalog, repo: catalog.Repository()}
}

func respondError(c *gin.Context, err error) {
	catalogerrors.ToAppError(err).ToGinResponse(c)
}

func byID(q *gorm.DB) *gorm.DB {
	return q.Order("id")
}

// =============================================================================
// REFERENCE TABLES
// =============================================================================

// ListGenres handles GET /api/catalog/genres
func (h *Handler) ListGenres(c *gin.Context) {
	query := filters.NameFilter(h.repo.DB().WithContext(c.Request.Context()).Model(&database.MediaGenre{}), "name", c.Query("name"))
	api.RespondPage[database.MediaGenre](c, query, byID)
}

// GetGenre handles GET /api/catalog/genres/:id
func (h *Handler) GetGenre(c *gin.Context) {
	getReference[database.MediaGenre](h, c, "Genre")
}

// ListPersons handles GET /api/catalog/persons
func (h *Handler) ListPersons(c *gin.Context) {
	query := filters.NameFilter(h.repo.DB().WithContext(c.Request.Context()).Model(&database.Person{}), "name", c.Query("name"))
	api.RespondPage[database.Person](c, query, byID)
}

// GetPerson handles GET /api/catalog/persons/:id
func (h *Handler) GetPerson(c *gin.Context) {
	getReference[database.Person](h, c, "Person")
}

// ListRoles handles GET /api/catalog/roles
func (h *Handler) ListRoles(c *gin.Context) {
	api.RespondPage[database.StaffRole](c, h.repo.DB().WithContext(c.Request.Context()).Model(&database.StaffRole{}), byID)
}

// GetRole handles GET /api/catalog/roles/:id
func (h *Handler) GetRole(c *gin.Context) {
	getReference[database.StaffRole](h, c, "Role")
}

// ListCompanies handles GET /api/catalog/companies
func (h *Handler) ListCompanies(c *gin.Context) {
	query := filters.NameFilter(h.repo.DB().WithContext(c.Request.Context()).Model(&database.Company{}), "name", c.Query("name"))
	api.RespondPage[database.Company](c, query, byID)
}

// GetCompany handles GET /api/catalog/companies/:id
func (h *Handler) GetCompany(c *gin.Context) {
	getReference[database.Company](h, c, "Company")
}

// ListPhotos handles GET /api/catalog/photos
func (h *Handler) ListPhotos(c *gin.Context) {
	query := mediaParentFilter(c, h.repo.DB().WithContext(c.Request.Context()).Model(&database.Photo{}))
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	api.RespondPage[database.Photo](c, query, byID)
}

// GetPhoto handles GET /api/catalog/photos/:id
func (h *Handler) GetPhoto(c *gin.Context) {
	getReference[database.Photo](h, c, "Photo")
}

// ListVideos handles GET /api/catalog/videos
func (h *Handler) ListVideos(c *gin.Context) {
	query := mediaParentFilter(c, h.repo.DB().WithContext(c.Request.Context()).Model(&database.Video{}))
	api.RespondPage[database.Video](c, query, func(q *gorm.DB) *gorm.DB {
		return q.Preload("Preview").Order("id")
	})
}

// GetVideo handles GET /api/catalog/videos/:id
func (h *Handler) GetVideo(c *gin.Context) {
	getReference[database.Video](h, c, "Video", "Preview")
}

// mediaParentFilter narrows photos and videos to one movie, series or game
func mediaParentFilter(c *gin.Context, query *gorm.DB) *gorm.DB {
	for _, kind := range []database.MediaKind{database.MovieKind, database.SeriesKind, database.GameKind} {
		if id, err := strconv.ParseUint(c.Query(kind.Name), 10, 64); err == nil {
			query = query.Where(kind.ForeignKey+" = ?", id)
		}
	}
	return query
}

func getReference[T any](h *Handler, c *gin.Context, resource string, preloads ...string) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	var row T
	err := h.repo.First(c.Request.Context(), &row, id, preloads...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		apperrors.HandleNotFound(c, resource, c.Param("id"))
		return
	}
	if err != nil {
		apperrors.HandleDatabaseError(c, "get "+resource, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// =============================================================================
// MEDIA
// =============================================================================

// ListMovies handles GET /api/catalog/movies
func (h *Handler) ListMovies(c *gin.Context) {
	listMedia[database.Movie](h, c, database.MovieKind)
}

// GetMovie handles GET /api/catalog/movies/:id
func (h *Handler) GetMovie(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	movie, err := h.repo.GetMovie(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movie)
}

// ListSeries handles GET /api/catalog/series
func (h *Handler) ListSeries(c *gin.Context) {
	listMedia[database.Series](h, c, database.SeriesKind)
}

// GetSeries handles GET /api/catalog/series/:id
func (h *Handler) GetSeries(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	series, err := h.repo.GetSeries(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// ListGames handles GET /api/catalog/games
func (h *Handler) ListGames(c *gin.Context) {
	listMedia[database.Game](h, c, database.GameKind)
}

// GetGame handles GET /api/catalog/games/:id
func (h *Handler) GetGame(c *gin.Context) {
	id, ok := apperrors.ParseID(c, "id")
	if !ok {
		return
	}
	game, err := h.repo.GetGame(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

// listMedia filters, counts and pages one media table. The rating column is
// only selected for the page itself so the count stays a plain COUNT(*).
func listMedia[T any](h *Handler, c *gin.Context, kind database.MediaKind) {
	filter, err := filters.ParseMediaFilter(kind, c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}

	query := filter.Apply(h.repo.MediaQuery(c.Request.Context(), kind), kind)
	api.RespondPage[T](c, query, func(q *gorm.DB) *gorm.DB {
		return repository.ListPreloads(repository.WithRating(q, kind)).Order(kind.Table + ".id")
	})
}
