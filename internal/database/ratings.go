package database

import "time"

// MediaKind describes how one media type is laid out in the store
type MediaKind struct {
	Name           string // movie, series, game
	Label          string // Movie, Series, Game
	Table          string
	ForeignKey     string // column referencing Table from ratings, collections, staff, photos
	RatingTable    string
	GenreJoinTable string
}

var (
	MovieKind = MediaKind{
		Name:           "movie",
		Label:          "Movie",
		Table:          "movies",
		ForeignKey:     "movie_id",
		RatingTable:    "movie_ratings",
		GenreJoinTable: "movie_genres",
	}
	SeriesKind = MediaKind{
		Name:           "series",
		Label:          "Series",
		Table:          "series",
		ForeignKey:     "series_id",
		RatingTable:    "series_ratings",
		GenreJoinTable: "series_genres",
	}
	GameKind = MediaKind{
		Name:           "game",
		Label:          "Game",
		Table:          "games",
		ForeignKey:     "game_id",
		RatingTable:    "game_ratings",
		GenreJoinTable: "game_genres",
	}
)

// OwnedMediaRow is a per-user row about one media item (a rating or a collection entry)
type OwnedMediaRow interface {
	GetID() uint
	GetUserID() string
	SetUserID(userID string)
	GetMediaID() uint
	SetMediaID(mediaID uint)
}

// RatingRow is implemented by the three rating tables
type RatingRow interface {
	OwnedMediaRow
	GetRating() int
	SetRating(value int)
}

// =============================================================================
// RATINGS
// =============================================================================

// MovieRating is one user's 1-10 score for a movie. (movie_id, user_id) is unique.
type MovieRating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MovieID   uint      `gorm:"not null;uniqueIndex:idx_movie_ratings_media_user" json:"movie"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_movie_ratings_media_user;index" json:"user"`
	Rating    int       `gorm:"not null;check:chk_movie_ratings_range,rating BETWEEN 1 AND 10" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *MovieRating) GetID() uint         { return r.ID }
func (r *MovieRating) GetUserID() string   { return r.UserID }
func (r *MovieRating) SetUserID(id string) { r.UserID = id }
func (r *MovieRating) GetMediaID() uint    { return r.MovieID }
func (r *MovieRating) SetMediaID(id uint)  { r.MovieID = id }
func (r *MovieRating) GetRating() int      { return r.Rating }
func (r *MovieRating) SetRating(value int) { r.Rating = value }

// SeriesRating is one user's 1-10 score for a series
type SeriesRating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SeriesID  uint      `gorm:"not null;uniqueIndex:idx_series_ratings_media_user" json:"series"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_series_ratings_media_user;index" json:"user"`
	Rating    int       `gorm:"not null;check:chk_series_ratings_range,rating BETWEEN 1 AND 10" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *SeriesRating) GetID() uint         { return r.ID }
func (r *SeriesRating) GetUserID() string   { return r.UserID }
func (r *SeriesRating) SetUserID(id string) { r.UserID = id }
func (r *SeriesRating) GetMediaID() uint    { return r.SeriesID }
func (r *SeriesRating) SetMediaID(id uint)  { r.SeriesID = id }
func (r *SeriesRating) GetRating() int      { return r.Rating }
func (r *SeriesRating) SetRating(value int) { r.Rating = value }

// GameRating is one user's 1-10 score for a game
type GameRating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GameID    uint      `gorm:"not null;uniqueIndex:idx_game_ratings_media_user" json:"game"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_game_ratings_media_user;index" json:"user"`
	Rating    int       `gorm:"not null;check:chk_game_ratings_range,rating BETWEEN 1 AND 10" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *GameRating) GetID() uint         { return r.ID }
func (r *GameRating) GetUserID() string   { return r.UserID }
func (r *GameRating) SetUserID(id string) { r.UserID = id }
func (r *GameRating) GetMediaID() uint    { return r.GameID }
func (r *GameRating) SetMediaID(id uint)  { r.GameID = id }
func (r *GameRating) GetRating() int      { return r.Rating }
func (r *GameRating) SetRating(value int) { r.Rating = value }

// =============================================================================
// COLLECTIONS
// =============================================================================

// CollectionStatus tracks a user's progress with a collected item
type CollectionStatus string

const (
	CollectionPlanned    CollectionStatus = "planned"
	CollectionInProgress CollectionStatus = "in_progress"
	CollectionCompleted  CollectionStatus = "completed"
	CollectionAbandoned  CollectionStatus = "abandoned"
)

// Valid reports whether s is a known status
func (s CollectionStatus) Valid() bool {
	switch s {
	case CollectionPlanned, CollectionInProgress, CollectionCompleted, CollectionAbandoned:
		return true
	}
	return false
}

// CollectionRow is implemented by the three collection tables
type CollectionRow interface {
	OwnedMediaRow
	GetStatus() CollectionStatus
	SetStatus(status CollectionStatus)
}

// UserMovieCollection puts a movie in a user's collection
type UserMovieCollection struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"size:36;not null;uniqueIndex:idx_movie_collection_user_media" json:"user"`
	MovieID   uint             `gorm:"not null;uniqueIndex:idx_movie_collection_user_media;index" json:"movie"`
	Status    CollectionStatus `gorm:"size:16;not null;default:'planned'" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (c *UserMovieCollection) GetID() uint                  { return c.ID }
func (c *UserMovieCollection) GetUserID() string            { return c.UserID }
func (c *UserMovieCollection) SetUserID(id string)          { c.UserID = id }
func (c *UserMovieCollection) GetMediaID() uint             { return c.MovieID }
func (c *UserMovieCollection) SetMediaID(id uint)           { c.MovieID = id }
func (c *UserMovieCollection) GetStatus() CollectionStatus  { return c.Status }
func (c *UserMovieCollection) SetStatus(s CollectionStatus) { c.Status = s }

// UserSeriesCollection puts a series in a user's collection
type UserSeriesCollection struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"size:36;not null;uniqueIndex:idx_series_collection_user_media" json:"user"`
	SeriesID  uint             `gorm:"not null;uniqueIndex:idx_series_collection_user_media;index" json:"series"`
	Status    CollectionStatus `gorm:"size:16;not null;default:'planned'" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (c *UserSeriesCollection) GetID() uint                  { return c.ID }
func (c *UserSeriesCollection) GetUserID() string            { return c.UserID }
func (c *UserSeriesCollection) SetUserID(id string)          { c.UserID = id }
func (c *UserSeriesCollection) GetMediaID() uint             { return c.SeriesID }
func (c *UserSeriesCollection) SetMediaID(id uint)           { c.SeriesID = id }
func (c *UserSeriesCollection) GetStatus() CollectionStatus  { return c.Status }
func (c *UserSeriesCollection) SetStatus(s CollectionStatus) { c.Status = s }

// UserGameCollection puts a game in a user's collection
type UserGameCollection struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"size:36;not null;uniqueIndex:idx_game_collection_user_media" json:"user"`
	GameID    uint             `gorm:"not null;uniqueIndex:idx_game_collection_user_media;index" json:"game"`
	Status    CollectionStatus `gorm:"size:16;not null;default:'planned'" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (c *UserGameCollection) GetID() uint                  { return c.ID }
func (c *UserGameCollection) GetUserID() string            { return c.UserID }
func (c *UserGameCollection) SetUserID(id string)          { c.UserID = id }
func (c *UserGameCollection) GetMediaID() uint             { return c.GameID }
func (c *UserGameCollection) SetMediaID(id uint)           { c.GameID = id }
func (c *UserGameCollection) GetStatus() CollectionStatus  { return c.Status }
func (c *UserGameCollection) SetStatus(s CollectionStatus) { c.Status = s }
