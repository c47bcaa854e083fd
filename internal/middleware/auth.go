package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/database"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
	"github.com/mantonx/medialibrary/internal/services"
)

const userContextKey = "auth_user"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The "Token" scheme is accepted as well.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		return ""
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return ""
	}
	return strings.TrimSpace(token)
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests through. An invalid token is still rejected.
func OptionalAuth(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" || auth == nil {
			c.Next()
			return
		}
		if !authenticate(c, auth, token) {
			return
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid token with 401
func RequireAuth(auth services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" || auth == nil {
			apperrors.NewUnauthorizedError("Authentication credentials were not provided").ToGinResponse(c)
			return
		}
		if !authenticate(c, auth, token) {
			return
		}
		c.Next()
	}
}

// RequireStaff must run after RequireAuth
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsStaff {
			apperrors.NewForbiddenError("Staff access required").ToGinResponse(c)
			return
		}
		c.Next()
	}
}

// RequireUserOnWrite lets safe methods through anonymously and requires
// authentication for everything else
func RequireUserOnWrite(auth services.AuthService) gin.HandlerFunc {
	required := RequireAuth(auth)
	optional := OptionalAuth(auth)
	return func(c *gin.Context) {
		switch c.Request.Method {
		case "GET", "HEAD", "OPTIONS":
			optional(c)
		default:
			required(c)
		}
	}
}

// CurrentUser returns the authenticated user, if any
func CurrentUser(c *gin.Context) (*database.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*database.User)
	return user, ok && user != nil
}

// SetCurrentUser attaches user to the request context
func SetCurrentUser(c *gin.Context, user *database.User) {
	c.Set(userContextKey, user)
}

func authenticate(c *gin.Context, auth services.AuthService, token string) bool {
	user, err := auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		apperrors.NewUnauthorizedError("Invalid or expired token").ToGinResponse(c)
		return false
	}
	SetCurrentUser(c, user)
	return true
}
