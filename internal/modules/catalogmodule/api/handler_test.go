package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/database/dbtest"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/repository"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// tokenAuth treats the token as a username
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

type env struct {
	db     *gorm.DB
	router *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)
	for _, name := range []string{"ann", "bob"} {
		require.NoError(t, db.Create(&database.User{Email: name + "@example.com", Username: name, PasswordHash: "x"}).Error)
	}

	router := gin.New()
	handler := NewHandler(service.NewCatalogService(repository.New(db)))
	RegisterRoutes(router.Group("/api/catalog"), handler, tokenAuth{db: db})
	return &env{db: db, router: router}
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestMovieListCarriesRating(t *testing.T) {
	e := newEnv(t)
	released := time.Date(1994, time.September, 23, 0, 0, 0, 0, time.UTC)
	drama := database.MediaGenre{Name: "Drama"}
	require.NoError(t, e.db.Create(&drama).Error)
	rated := database.Movie{Title: "The Shawshank Redemption", ReleaseDate: &released, Genres: []database.MediaGenre{drama}}
	require.NoError(t, e.db.Create(&rated).Error)
	require.NoError(t, e.db.Create(&database.Movie{Title: "Unrated"}).Error)

	for _, token := range []string{"ann", "bob"} {
		value := 8
		if token == "bob" {
			value = 9
		}
		w := e.do(t, http.MethodPost, "/api/catalog/movie_ratings", token, gin.H{"movie": rated.ID, "rating": value})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := e.do(t, http.MethodGet, "/api/catalog/movies", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["count"])
	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "The Shawshank Redemption", first["title"])
	assert.InDelta(t, 8.5, first["rating"], 1e-9)
	assert.Len(t, first["genres"], 1)
	assert.Equal(t, float64(0), results[1].(map[string]interface{})["rating"])

	w = e.do(t, http.MethodGet, "/api/catalog/movies?release_date=1994&genres="+fmt.Sprint(drama.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/catalog/movies/%d", rated.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 8.5, decode(t, w)["rating"], 1e-9)
}

func TestMovieDetailNotFound(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/catalog/movies/42", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/catalog/movies?release_date=soon", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeriesDetailIncludesStaff(t *testing.T) {
	e := newEnv(t)
	series := database.Series{Title: "The Wire", Episodes: 60}
	require.NoError(t, e.db.Create(&series).Error)
	person := database.Person{Name: "Dominic West"}
	role := database.StaffRole{Name: "actor"}
	require.NoError(t, e.db.Create(&person).Error)
	require.NoError(t, e.db.Create(&role).Error)
	require.NoError(t, e.db.Create(&database.Staff{PersonID: person.ID, RoleID: role.ID, SeriesID: &series.ID}).Error)

	w := e.do(t, http.MethodGet, fmt.Sprintf("/api/catalog/series/%d", series.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	staff := decode(t, w)["staff"].([]interface{})
	require.Len(t, staff, 1)
	entry := staff[0].(map[string]interface{})
	assert.Equal(t, "Dominic West", entry["person"].(map[string]interface{})["name"])
	assert.Equal(t, "actor", entry["role"].(map[string]interface{})["name"])
}

func TestRatingWritesNeedAuth(t *testing.T) {
	e := newEnv(t)
	game := database.Game{Title: "Portal"}
	require.NoError(t, e.db.Create(&game).Error)

	w := e.do(t, http.MethodPost, "/api/catalog/game_ratings", "", gin.H{"game": game.ID, "rating": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/catalog/game_ratings", "nobody", gin.H{"game": game.ID, "rating": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/catalog/game_ratings", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRatingRules(t *testing.T) {
	e := newEnv(t)
	movie := database.Movie{Title: "Heat"}
	require.NoError(t, e.db.Create(&movie).Error)

	w := e.do(t, http.MethodPost, "/api/catalog/movie_ratings", "ann", gin.H{"movie": movie.ID, "rating": 7})
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint(decode(t, w)["id"].(float64))

	w = e.do(t, http.MethodPost, "/api/catalog/movie_ratings", "ann", gin.H{"movie": movie.ID, "rating": 9})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Movie rating exists", decode(t, w)["error"])

	path := fmt.Sprintf("/api/catalog/movie_ratings/%d", id)
	w = e.do(t, http.MethodPatch, path, "bob", gin.H{"rating": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Can't edit rating", decode(t, w)["error"])

	w = e.do(t, http.MethodDelete, path, "bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Can't delete rating", decode(t, w)["error"])

	w = e.do(t, http.MethodPut, path, "ann", gin.H{"rating": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, path, "ann", gin.H{"rating": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["rating"])

	w = e.do(t, http.MethodPost, "/api/catalog/movie_ratings", "bob", gin.H{"movie": movie.ID, "rating": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, path, "ann", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReferenceLists(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Create(&database.Person{Name: "Robert De Niro"}).Error)
	require.NoError(t, e.db.Create(&database.Person{Name: "Al Pacino"}).Error)

	w := e.do(t, http.MethodGet, "/api/catalog/persons?name=niro", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])

	w = e.do(t, http.MethodGet, "/api/catalog/genres/99", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
