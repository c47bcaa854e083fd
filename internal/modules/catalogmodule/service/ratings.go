package service

import (
	"context"
	"errors"

	"github.com/mantonx/medialibrary/internal/database"
	catalogerrors "github.com/mantonx/medialibrary/internal/modules/catalogmodule/errors"
	"github.com/mantonx/medialibrary/internal/modules/catalogmodule/repository"
	"gorm.io/gorm"
)

// RatingModel is satisfied by pointers to the rating tables
type RatingModel[T any] interface {
	*T
	database.RatingRow
}

// RatingService applies the ownership and uniqueness rules of one rating table
type RatingService[T any, PT RatingModel[T]] struct {
	repo *repository.Repository
	kind database.MediaKind
}

// NewRatingService creates a rating service for kind
func NewRatingService[T any, PT RatingModel[T]](repo *repository.Repository, kind database.MediaKind) *RatingService[T, PT] {
	return &RatingService[T, PT]{repo: repo, kind: kind}
}

// Kind returns the media kind the service rates
func (s *RatingService[T, PT]) Kind() database.MediaKind {
	return s.kind
}

// Query returns a query over the rating table, for listing
func (s *RatingService[T, PT]) Query(ctx context.Context) *gorm.DB {
	return s.repo.DB().WithContext(ctx).Model(PT(new(T)))
}

// Get loads one rating
func (s *RatingService[T, PT]) Get(ctx context.Context, id uint) (PT, error) {
	rating := PT(new(T))
	err := s.repo.DB().WithContext(ctx).First(rating, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.fail("get", catalogerrors.ErrNotFound).WithID(id)
	}
	if err != nil {
		return nil, catalogerrors.DatabaseError(s.kind, "get", err).WithID(id)
	}
	return rating, nil
}

// Create stores userID's rating of mediaID. A second rating by the same user
// for the same item fails with ErrRatingExists.
func (s *RatingService[T, PT]) Create(ctx context.Context, userID string, mediaID uint, value int) (PT, error) {
	if err := validate(value); err != nil {
		return nil, s.fail("create", err)
	}
	if err := s.checkMedia(ctx, "create", mediaID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, "create", userID, mediaID, 0); err != nil {
		return nil, err
	}

	rating := PT(new(T))
	rating.SetUserID(userID)
	rating.SetMediaID(mediaID)
	rating.SetRating(value)

	if err := s.repo.DB().WithContext(ctx).Create(rating).Error; err != nil {
		// the unique index catches a concurrent duplicate that slipped past the check
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.fail("create", catalogerrors.ErrRatingExists)
		}
		return nil, catalogerrors.DatabaseError(s.kind, "create", err)
	}
	return rating, nil
}

// RatingUpdate holds the fields a rating update may change; nil keeps the current value
type RatingUpdate struct {
	MediaID *uint
	Rating  *int
}

// Update changes userID's own rating. Other users' ratings fail with ErrForeignRating.
func (s *RatingService[T, PT]) Update(ctx context.Context, userID string, id uint, upd RatingUpdate) (PT, error) {
	rating, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rating.GetUserID() != userID {
		return nil, s.fail("update", catalogerrors.ErrForeignRating).WithID(id)
	}

	if upd.Rating != nil {
		if err := validate(*upd.Rating); err != nil {
			return nil, s.fail("update", err).WithID(id)
		}
		rating.SetRating(*upd.Rating)
	}
	if upd.MediaID != nil && *upd.MediaID != rating.GetMediaID() {
		if err := s.checkMedia(ctx, "update", *upd.MediaID); err != nil {
			return nil, err
		}
		if err := s.checkUnique(ctx, "update", userID, *upd.MediaID, id); err != nil {
			return nil, err
		}
		rating.SetMediaID(*upd.MediaID)
	}

	if err := s.repo.DB().WithContext(ctx).Save(rating).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.fail("update", catalogerrors.ErrRatingExists).WithID(id)
		}
		return nil, catalogerrors.DatabaseError(s.kind, "update", err).WithID(id)
	}
	return rating, nil
}

// Delete removes userID's own rating. Other users' ratings fail with ErrForeignRating.
func (s *RatingService[T, PT]) Delete(ctx context.Context, userID string, id uint) error {
	rating, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rating.GetUserID() != userID {
		return s.fail("delete", catalogerrors.ErrForeignRating).WithID(id)
	}
	if err := s.repo.DB().WithContext(ctx).Delete(rating).Error; err != nil {
		return catalogerrors.DatabaseError(s.kind, "delete", err).WithID(id)
	}
	return nil
}

func (s *RatingService[T, PT]) checkMedia(ctx context.Context, op string, mediaID uint) error {
	exists, err := s.repo.MediaExists(ctx, s.kind, mediaID)
	if err != nil {
		return err
	}
	if !exists {
		return catalogerrors.New(catalogerrors.ErrorTypeValidation, s.kind, op, catalogerrors.ErrNotFound).
			WithID(mediaID).WithField(s.kind.Name)
	}
	return nil
}

// checkUnique fails when userID already rated mediaID in a row other than exceptID
func (s *RatingService[T, PT]) checkUnique(ctx context.Context, op, userID string, mediaID, exceptID uint) error {
	query := s.Query(ctx).Where(s.kind.ForeignKey+" = ? AND user_id = ?", mediaID, userID)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return catalogerrors.DatabaseError(s.kind, op, err)
	}
	if count > 0 {
		return s.fail(op, catalogerrors.ErrRatingExists)
	}
	return nil
}

func (s *RatingService[T, PT]) fail(op string, err error) *catalogerrors.CatalogError {
	return catalogerrors.RatingError(s.kind, op, err)
}

func validate(value int) error {
	if value < 1 || value > 10 {
		return catalogerrors.ErrInvalidRating
	}
	return nil
}
