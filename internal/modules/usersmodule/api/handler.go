// Package api serves accounts and collections over HTTP
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/api"
	"github.com/mantonx/medialibrary/internal/database"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/middleware"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/filters"
	usererrors "github.com/mantonx/medialibrary/internal/modules/usersmodule/errors"
	"github.com/mantonx/medialibrary/internal/modules/usersmodule/service"
	"gorm.io/gorm"
)

// Handler serves the account endpoints
type Handler struct {
	users *service.UserService
}

// NewHandler creates an account handler
func NewHandler(users *service.UserService) *Handler {
	return &Handler{users: users}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type profileRequest struct {
	Username *string `json:"username"`
	AvatarID *uint   `json:"avatar"`
}

// Register handles POST /register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) || !required(c, map[string]string{
		"email": req.Email, "username": req.Username, "password1": req.Password1, "password2": req.Password2,
	}) {
		return
	}

	token, _, err := h.users.Register(c.Request.Context(), service.Registration{
		Email:     req.Email,
		Username:  req.Username,
		Password1: req.Password1,
		Password2: req.Password2,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Login handles POST /login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) || !required(c, map[string]string{"email": req.Email, "password": req.Password}) {
		return
	}

	token, user, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// ChangePassword handles POST /change_password
func (h *Handler) ChangePassword(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var req changePasswordRequest
	if !bind(c, &req) || !required(c, map[string]string{
		"old_password": req.OldPassword, "new_password": req.NewPassword, "confirm_password": req.ConfirmPassword,
	}) {
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), user, service.PasswordChange{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	api.Detail(c, http.StatusOK, "Password changed successfully")
}

// ResetPassword handles POST /reset_password
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if !bind(c, &req) || !required(c, map[string]string{"email": req.Email}) {
		return
	}

	base := strings.TrimSuffix(c.Request.URL.Path, "reset_password")
	confirmURL := func(token string) string {
		return api.AbsoluteURL(c, base+"password-reset-confirm/"+token)
	}
	if err := h.users.RequestReset(c.Request.Context(), req.Email, confirmURL); err != nil {
		respondError(c, err)
		return
	}
	api.Detail(c, http.StatusOK, "Message sent")
}

// ConfirmReset handles GET /password-reset-confirm/:token
func (h *Handler) ConfirmReset(c *gin.Context) {
	if err := h.users.ConfirmReset(c.Request.Context(), c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	api.Detail(c, http.StatusOK, "Password was changed")
}

// List handles GET "". username filters by substring, case-insensitively.
func (h *Handler) List(c *gin.Context) {
	query := filters.NameFilter(h.users.Query(c.Request.Context()), "username", c.Query("username"))
	api.RespondPage[database.User](c, query, func(q *gorm.DB) *gorm.DB {
		return q.Preload("Avatar").Order("username")
	})
}

// Get handles GET /:id
func (h *Handler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update handles PUT and PATCH /:id on the caller's own profile
func (h *Handler) Update(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)
	var req profileRequest
	if !bind(c, &req) {
		return
	}
	if c.Request.Method == http.MethodPut && req.Username == nil {
		apperrors.HandleValidationError(c, "This field is required.", "username")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), actor, c.Param("id"), service.ProfileUpdate{
		Username: req.Username,
		AvatarID: req.AvatarID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		apperrors.HandleValidationError(c, "Invalid request body", "")
		return false
	}
	return true
}

// required rejects the request when any of fields is empty. Fields are
// checked in a stable order so the reported field is deterministic.
func required(c *gin.Context, fields map[string]string) bool {
	for _, name := range requiredOrder {
		if value, ok := fields[name]; ok && value == "" {
			apperrors.HandleValidationError(c, "This field is required.", name)
			return false
		}
	}
	return true
}

var requiredOrder = []string{
	"email", "username", "password", "password1", "password2",
	"old_password", "new_password", "confirm_password",
}

func respondError(c *gin.Context, err error) {
	usererrors.ToAppError(err).ToGinResponse(c)
}
