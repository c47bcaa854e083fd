package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/service"
)

// RegisterRoutes mounts the account and collection endpoints on group.
// Sign-up, login and password reset are public; collections are readable
// anonymously.
func RegisterRoutes(group *gin.RouterGroup, handler *Handler, collections *service.Collections) {
	auth := handler.users

	group.POST("/register", handler.Register)
	group.POST("/login", handler.Login)
	group.POST("/reset_password", handler.ResetPassword)
	group.GET("/password-reset-confirm/:token", handler.ConfirmReset)

	shelves := group.Group("", middleware.RequireUserOnWrite(auth))
	NewCollectionHandler(collections.Movies).Register(shelves.Group("/movie_collection"))
	NewCollectionHandler(collections.Series).Register(shelves.Group("/series_collection"))
	NewCollectionHandler(collections.Games).Register(shelves.Group("/game_collection"))

	private := group.Group("", middleware.RequireAuth(auth))
	private.POST("/change_password", handler.ChangePassword)
	private.GET("", handler.List)
	private.GET("/:id", handler.Get)
	private.PUT("/:id", handler.Update)
	private.PATCH("/:id", handler.Update)
}
