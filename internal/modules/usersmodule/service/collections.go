package service

import (
	"context"
	"errors"

	"github.com/mantonx/medialibrary/internal/database"
	usererrors "github.com/mantonx/medialibrary/internal/modules/usersmodule/errors"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
)

// CollectionModel is satisfied by pointers to the collection tables
type CollectionModel[T any] interface {
	*T
	database.CollectionRow
}

// CollectionService manages one collection table. Each user holds a media
// item at most once and only edits their own entries.
type CollectionService[T any, PT CollectionModel[T]] struct {
	db      *gorm.DB
	kind    database.MediaKind
	catalog services.CatalogService
}

// NewCollectionService creates a collection service for kind. Media ids are
// checked against catalog.
func NewCollectionService[T any, PT CollectionModel[T]](db *gorm.DB, kind database.MediaKind, catalog services.CatalogService) *CollectionService[T, PT] {
	return &CollectionService[T, PT]{db: db, kind: kind, catalog: catalog}
}

// Kind returns the media kind collected
func (s *CollectionService[T, PT]) Kind() database.MediaKind {
	return s.kind
}

// Query returns a query over the collection table
func (s *CollectionService[T, PT]) Query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(PT(new(T)))
}

// Get loads one entry
func (s *CollectionService[T, PT]) Get(ctx context.Context, id uint) (PT, error) {
	entry := PT(new(T))
	err := s.db.WithContext(ctx).First(entry, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.fail("get", usererrors.ErrNotFound)
	}
	if err != nil {
		return nil, s.fail("get", err)
	}
	return entry, nil
}

// Create adds mediaID to userID's collection. An empty status means planned.
func (s *CollectionService[T, PT]) Create(ctx context.Context, userID string, mediaID uint, status database.CollectionStatus) (PT, error) {
	if status == "" {
		status = database.CollectionPlanned
	}
	if !status.Valid() {
		return nil, s.fail("create", usererrors.ErrInvalidStatus).WithField("status")
	}
	if err := s.checkMedia(ctx, "create", mediaID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, "create", userID, mediaID, 0); err != nil {
		return nil, err
	}

	entry := PT(new(T))
	entry.SetUserID(userID)
	entry.SetMediaID(mediaID)
	entry.SetStatus(status)
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.fail("create", usererrors.ErrCollectionExists)
		}
		return nil, s.fail("create", err)
	}
	return entry, nil
}

// CollectionUpdate holds the fields an update may change; nil keeps the current value
type CollectionUpdate struct {
	MediaID *uint
	Status  *database.CollectionStatus
}

// Update changes userID's own entry
func (s *CollectionService[T, PT]) Update(ctx context.Context, userID string, id uint, upd CollectionUpdate) (PT, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.GetUserID() != userID {
		return nil, s.fail("update", usererrors.ErrForeignCollection)
	}

	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, s.fail("update", usererrors.ErrInvalidStatus).WithField("status")
		}
		entry.SetStatus(*upd.Status)
	}
	if upd.MediaID != nil && *upd.MediaID != entry.GetMediaID() {
		if err := s.checkMedia(ctx, "update", *upd.MediaID); err != nil {
			return nil, err
		}
		if err := s.checkUnique(ctx, "update", userID, *upd.MediaID, id); err != nil {
			return nil, err
		}
		entry.SetMediaID(*upd.MediaID)
	}

	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.fail("update", usererrors.ErrCollectionExists)
		}
		return nil, s.fail("update", err)
	}
	return entry, nil
}

// Delete removes userID's own entry
func (s *CollectionService[T, PT]) Delete(ctx context.Context, userID string, id uint) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.GetUserID() != userID {
		return s.fail("delete", usererrors.ErrForeignCollection)
	}
	if err := s.db.WithContext(ctx).Delete(entry).Error; err != nil {
		return s.fail("delete", err)
	}
	return nil
}

func (s *CollectionService[T, PT]) checkMedia(ctx context.Context, op string, mediaID uint) error {
	exists, err := s.catalog.MediaExists(ctx, s.kind, mediaID)
	if err != nil {
		return s.fail(op, err)
	}
	if !exists {
		return s.fail(op, usererrors.ErrMediaNotFound).WithField(s.kind.Name)
	}
	return nil
}

func (s *CollectionService[T, PT]) checkUnique(ctx context.Context, op, userID string, mediaID, exceptID uint) error {
	query := s.Query(ctx).Where(s.kind.ForeignKey+" = ? AND user_id = ?", mediaID, userID)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return s.fail(op, err)
	}
	if count > 0 {
		return s.fail(op, usererrors.ErrCollectionExists)
	}
	return nil
}

func (s *CollectionService[T, PT]) fail(op string, err error) *usererrors.UserError {
	return usererrors.Collection(s.kind.Label, op, err)
}

// Collections groups the three collection tables
type Collections struct {
	Movies *CollectionService[database.UserMovieCollection, *database.UserMovieCollection]
	Series *CollectionService[database.UserSeriesCollection, *database.UserSeriesCollection]
	Games  *CollectionService[database.UserGameCollection, *database.UserGameCollection]
}

// NewCollections creates the collection services
func NewCollections(db *gorm.DB, catalog services.CatalogService) *Collections {
	return &Collections{
		Movies: NewCollectionService[database.UserMovieCollection](db, database.MovieKind, catalog),
		Series: NewCollectionService[database.UserSeriesCollection](db, database.SeriesKind, catalog),
		Games:  NewCollectionService[database.UserGameCollection](db, database.GameKind, catalog),
	}
}
