// Package errors provides the catalog module's error types and their
// mapping onto HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mantonx/medialibrary/internal/database"
	apperrors "github.com/mantonx/medialibrary/internal/errors"
)

// ErrorType classifies catalog errors
type ErrorType string

const (
	ErrorTypeRating     ErrorType = "rating"
	ErrorTypeQuery      ErrorType = "query"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
)

// Sentinel errors
var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrRatingExists indicates the user already rated this item
	ErrRatingExists = errors.New("rating exists")

	// ErrForeignRating indicates an attempt to change another user's rating
	ErrForeignRating = errors.New("rating belongs to another user")

	// ErrInvalidRating indicates a rating value outside 1..10
	ErrInvalidRating = errors.New("rating must be between 1 and 10")

	// ErrInvalidFilter indicates a malformed query parameter
	ErrInvalidFilter = errors.New("invalid filter")
)

// CatalogError carries the failing operation and the media kind involved
type CatalogError struct {
	Type  ErrorType
	Op    string // create, update, delete, get, list
	Kind  database.MediaKind
	ID    uint
	Field string
	Err   error
}

func (e *CatalogError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s error in %s %s [id=%d]: %v", e.Type, e.Kind.Name, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s error in %s %s: %v", e.Type, e.Kind.Name, e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// New creates a new CatalogError
func New(errType ErrorType, kind database.MediaKind, op string, err error) *CatalogError {
	return &CatalogError{Type: errType, Kind: kind, Op: op, Err: err}
}

// WithID adds the row id to the error
func (e *CatalogError) WithID(id uint) *CatalogError {
	e.ID = id
	return e
}

// WithField names the offending request field
func (e *CatalogError) WithField(field string) *CatalogError {
	e.Field = field
	return e
}

// RatingError creates a rating-related error
func RatingError(kind database.MediaKind, op string, err error) *CatalogError {
	return New(ErrorTypeRating, kind, op, err)
}

// DatabaseError wraps a store failure
func DatabaseError(kind database.MediaKind, op string, err error) *CatalogError {
	return New(ErrorTypeDatabase, kind, op, err)
}

// ToAppError maps err onto the HTTP error the handlers send
func ToAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}

	var ce *CatalogError
	if !errors.As(err, &ce) {
		return apperrors.NewInternalError("Internal server error", err)
	}

	switch {
	case errors.Is(err, ErrNotFound):
		resource := ce.Kind.Label
		if ce.Type == ErrorTypeRating {
			resource += " rating"
		}
		if ce.Field != "" {
			return apperrors.NewValidationError(resource+" does not exist", ce.Field)
		}
		return apperrors.NewNotFoundError(resource, strconv.FormatUint(uint64(ce.ID), 10))
	case errors.Is(err, ErrRatingExists):
		return apperrors.NewConflictError(ce.Kind.Label + " rating exists")
	case errors.Is(err, ErrForeignRating):
		if ce.Op == "delete" {
			return apperrors.NewForbiddenError("Can't delete rating")
		}
		return apperrors.NewForbiddenError("Can't edit rating")
	case errors.Is(err, ErrInvalidRating):
		return apperrors.NewValidationError(ErrInvalidRating.Error(), "rating")
	case errors.Is(err, ErrInvalidFilter):
		return apperrors.NewValidationError(ce.Err.Error(), ce.Field)
	default:
		return apperrors.NewDatabaseError(ce.Op+" "+ce.Kind.Name, err)
	}
}
