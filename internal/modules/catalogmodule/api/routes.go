package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/services"
)

// RegisterRoutes mounts the catalog endpoints on group. Reads are public;
// writes need a valid token from auth.
func RegisterRoutes(group *gin.RouterGroup, handler *Handler, auth services.AuthService) {
	group.Use(middleware.RequireUserOnWrite(auth))

	group.GET("/genres", handler.ListGenres)
	group.GET("/genres/:id", handler.GetGenre)
	group.GET("/persons", handler.ListPersons)
	group.GET("/persons/:id", handler.GetPerson)
	group.GET("/roles", handler.ListRoles)
	group.GET("/roles/:id", handler.GetRole)
	group.GET("/companies", handler.ListCompanies)
	group.GET("/companies/:id", handler.GetCompany)

	group.GET("/movies", handler.ListMovies)
	group.GET("/movies/:id", handler.GetMovie)
	group.GET("/series", handler.ListSeries)
	group.GET("/series/:id", handler.GetSeries)
	group.GET("/games", handler.ListGames)
	group.GET("/games/:id", handler.GetGame)

	group.GET("/photos", handler.ListPhotos)
	group.GET("/photos/:id", handler.GetPhoto)
	group.GET("/videos", handler.ListVideos)
	group.GET("/videos/:id", handler.GetVideo)

	NewRatingHandler(handler.catalog.MovieRatings).Register(group.Group("/movie_ratings"))
	NewRatingHandler(handler.catalog.SeriesRatings).Register(group.Group("/series_ratings"))
	NewRatingHandler(handler.catalog.GameRatings).Register(group.Group("/game_ratings"))
}
