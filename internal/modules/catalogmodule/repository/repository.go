// Package repository is the catalog's data access layer. Average ratings
// are computed inside the same query that loads the media rows.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mantonx/medialibrary/internal/database"
	catalogerrors "github.com/mantonx/medialibrary/internal/modules/catalogmodule/errors"
	"gorm.io/gorm"
)

// Repository handles catalog reads
type Repository struct {
	db *gorm.DB
}

// New creates a new catalog repository
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying connection
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// RatingSelect selects every column of kind's table plus the rounded average
// of its ratings as "rating". Unrated items get 0.
func RatingSelect(kind database.MediaKind) string {
	return fmt.Sprintf(
		"%[1]s.*, (SELECT COALESCE(ROUND(AVG(r.rating), 2), 0) FROM %[2]s r WHERE r.%[3]s = %[1]s.id) AS rating",
		kind.Table, kind.RatingTable, kind.ForeignKey)
}

// WithRating adds the rating column to a media query
func WithRating(query *gorm.DB, kind database.MediaKind) *gorm.DB {
	return query.Select(RatingSelect(kind))
}

// Model returns the empty model for kind
func Model(kind database.MediaKind) interface{} {
	switch kind.Name {
	case database.SeriesKind.Name:
		return &database.Series{}
	case database.GameKind.Name:
		return &database.Game{}
	default:
		return &database.Movie{}
	}
}

// MediaQuery starts a query on kind's table
func (r *Repository) MediaQuery(ctx context.Context, kind database.MediaKind) *gorm.DB {
	return r.db.WithContext(ctx).Model(Model(kind))
}

// DetailPreloads loads everything a detail response shows
func DetailPreloads(query *gorm.DB, kind database.MediaKind) *gorm.DB {
	query = query.
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("media_genres.name") }).
		Preload("Company").
		Preload("Photos").
		Preload("Videos.Preview")
	if kind.Name != database.GameKind.Name {
		query = query.Preload("Staff", func(db *gorm.DB) *gorm.DB { return db.Order("staff.id") }).
			Preload("Staff.Person").
			Preload("Staff.Role")
	}
	return query
}

// ListPreloads loads the associations a list response shows
func ListPreloads(query *gorm.DB) *gorm.DB {
	return query.Preload("Genres").Preload("Company")
}

// GetMovie loads one movie with its rating and detail associations
func (r *Repository) GetMovie(ctx context.Context, id uint) (*database.Movie, error) {
	var movie database.Movie
	if err := r.getMedia(ctx, database.MovieKind, id, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetSeries loads one series with its rating and detail associations
func (r *Repository) GetSeries(ctx context.Context, id uint) (*database.Series, error) {
	var series database.Series
	if err := r.getMedia(ctx, database.SeriesKind, id, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// GetGame loads one game with its rating and detail associations
func (r *Repository) GetGame(ctx context.Context, id uint) (*database.Game, error) {
	var game database.Game
	if err := r.getMedia(ctx, database.GameKind, id, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *Repository) getMedia(ctx context.Context, kind database.MediaKind, id uint, dest interface{}) error {
	query := DetailPreloads(WithRating(r.MediaQuery(ctx, kind), kind), kind)
	err := query.Where(kind.Table+".id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return catalogerrors.New(catalogerrors.ErrorTypeQuery, kind, "get", catalogerrors.ErrNotFound).WithID(id)
	}
	if err != nil {
		return catalogerrors.DatabaseError(kind, "get", err).WithID(id)
	}
	return nil
}

// MediaExists reports whether kind has a row with this id
func (r *Repository) MediaExists(ctx context.Context, kind database.MediaKind, id uint) (bool, error) {
	var count int64
	if err := r.MediaQuery(ctx, kind).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, catalogerrors.DatabaseError(kind, "exists", err).WithID(id)
	}
	return count > 0, nil
}

// AverageRating computes the rating of one item exactly as list queries do
func (r *Repository) AverageRating(ctx context.Context, kind database.MediaKind, id uint) (float64, error) {
	var avg float64
	row := r.db.WithContext(ctx).Raw(
		fmt.Sprintf("SELECT COALESCE(ROUND(AVG(rating), 2), 0) FROM %s WHERE %s = ?", kind.RatingTable, kind.ForeignKey),
		id).Row()
	if err := row.Scan(&avg); err != nil {
		return 0, catalogerrors.DatabaseError(kind, "average", err).WithID(id)
	}
	return avg, nil
}

// First loads a single row of a reference table by id
func (r *Repository) First(ctx context.Context, dest interface{}, id uint, preloads ...string) error {
	query := r.db.WithContext(ctx)
	for _, p := range preloads {
		query = query.Preload(p)
	}
	return query.First(dest, id).Error
}
