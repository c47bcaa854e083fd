// Package service holds the catalog's business rules on top of the repository
package service

import (
	"context"

	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/repository"
	"github.com/mantonx/medialibrary/internal/services"
)

// CatalogService exposes catalog lookups to other modules
type CatalogService struct {
	repo *repository.Repository

	MovieRatings  *RatingService[database.MovieRating, *database.MovieRating]
	SeriesRatings *RatingService[database.SeriesRating, *database.SeriesRating]
	GameRatings   *RatingService[database.GameRating, *database.GameRating]
}

var _ services.CatalogService = (*CatalogService)(nil)

// NewCatalogService wires the rating services of every media kind
func NewCatalogService(repo *repository.Repository) *CatalogService {
	return &CatalogService{
		repo:          repo,
		MovieRatings:  NewRatingService[database.MovieRating](repo, database.MovieKind),
		SeriesRatings: NewRatingService[database.SeriesRating](repo, database.SeriesKind),
		GameRatings:   NewRatingService[database.GameRating](repo, database.GameKind),
	}
}

// Repository returns the underlying repository
func (s *CatalogService) Repository() *repository.Repository {
	return s.repo
}

// MediaExists reports whether the item exists
func (s *CatalogService) MediaExists(ctx context.Context, kind database.MediaKind, id uint) (bool, error) {
	return s.repo.MediaExists(ctx, kind, id)
}

// AverageRating returns the item's rounded average rating, 0 when unrated
func (s *CatalogService) AverageRating(ctx context.Context, kind database.MediaKind, id uint) (float64, error) {
	return s.repo.AverageRating(ctx, kind, id)
}
