package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Authenticate(ctx context.Context, token string) (*database.User, error) {
	args := m.Called(token)
	if u := args.Get(0); u != nil {
		return u.(*database.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	final := func(c *gin.Context) {
		if u, ok := CurrentUser(c); ok {
			c.String(http.StatusOK, u.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r.Any("/x", append(handlers, final)...)
	return r
}

func do(r *gin.Engine, method, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"Token abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		c.Request.Header.Set("Authorization", tt.header)
		assert.Equal(t, tt.want, BearerToken(c), tt.header)
	}
}

func TestRequireAuth(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Authenticate", "good").Return(&database.User{Username: "alice"}, nil)
	auth.On("Authenticate", "stale").Return(nil, errors.New("token version mismatch"))
	r := newRouter(RequireAuth(auth))

	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "Bearer stale").Code)

	w := do(r, "GET", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
	auth.AssertExpectations(t)
}

func TestRequireUserOnWrite(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Authenticate", "good").Return(&database.User{Username: "alice"}, nil)
	r := newRouter(RequireUserOnWrite(auth))

	w := do(r, "GET", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "POST", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "POST", "Bearer good").Code)
}

func TestRequireStaff(t *testing.T) {
	auth := new(mockAuth)
	auth.On("Authenticate", "user").Return(&database.User{Username: "bob"}, nil)
	auth.On("Authenticate", "staff").Return(&database.User{Username: "root", IsStaff: true}, nil)
	r := newRouter(RequireAuth(auth), RequireStaff())

	assert.Equal(t, http.StatusForbidden, do(r, "POST", "Bearer user").Code)
	assert.Equal(t, http.StatusOK, do(r, "POST", "Bearer staff").Code)
}

func TestMetricsAndLoggerPassThrough(t *testing.T) {
	r := newRouter(RequestLogger(), ErrorLogger(), Metrics())
	assert.Equal(t, http.StatusOK, do(r, "GET", "").Code)
}
