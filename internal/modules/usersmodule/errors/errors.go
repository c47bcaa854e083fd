// Package errors defines the users module's failures and how they map onto
// HTTP responses.
package errors

import (
	"errors"
	"fmt"

	apperrors "github.com/mantonx/medialibrary/internal/errors"
)

// Sentinel errors
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPasswordMismatch   = errors.New("passwords must match")
	ErrSamePassword       = errors.New("new password equals old password")
	ErrWrongPassword      = errors.New("old password is incorrect")
	ErrUnknownEmail       = errors.New("unknown email")
	ErrEmailTaken         = errors.New("email taken")
	ErrUsernameTaken      = errors.New("username taken")
	ErrForeignProfile     = errors.New("profile belongs to another user")
	ErrResetThrottled     = errors.New("password reset requested too often")
	ErrCollectionExists   = errors.New("already in collection")
	ErrForeignCollection  = errors.New("collection entry belongs to another user")
	ErrMediaNotFound      = errors.New("media does not exist")
	ErrInvalidStatus      = errors.New("invalid collection status")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("username must be 1 to 45 characters")
)

// UserError records the failing operation. Label names the media kind for
// collection errors.
type UserError struct {
	Op    string
	Label string
	Field string
	Err   error
}

func (e *UserError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s %s: %v", e.Label, e.Op, e.Err)
	}
	return fmt.Sprintf("user %s: %v", e.Op, e.Err)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// New creates a UserError
func New(op string, err error) *UserError {
	return &UserError{Op: op, Err: err}
}

// Collection creates a UserError about a collection of label ("Movie", "Series", "Game")
func Collection(label, op string, err error) *UserError {
	return &UserError{Op: op, Label: label, Err: err}
}

// WithField names the request field at fault
func (e *UserError) WithField(field string) *UserError {
	e.Field = field
	return e
}

var messages = map[error]string{
	ErrPasswordMismatch: "Passwords must match.",
	ErrSamePassword:     "The new password is the same as the old one.",
	ErrWrongPassword:    "Old password is incorrect.",
	ErrUnknownEmail:     "A user with this email not exists.",
	ErrEmailTaken:       "A user with this email already exists.",
	ErrUsernameTaken:    "A user with this username already exists.",
	ErrInvalidToken:     "Invalid or expired token",
	ErrInvalidStatus:    "Invalid collection status.",
	ErrInvalidEmail:     "Enter a valid email address.",
	ErrInvalidUsername:  "Ensure this field has 1 to 45 characters.",
}

// ToAppError maps err onto the HTTP error the handlers send
func ToAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}

	var ue *UserError
	if !errors.As(err, &ue) {
		return apperrors.NewInternalError("Internal server error", err)
	}

	for sentinel, message := range messages {
		if errors.Is(err, sentinel) {
			return apperrors.NewValidationError(message, ue.Field)
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		resource := "User"
		if ue.Label != "" {
			resource = ue.Label + " collection"
		}
		return apperrors.NewNotFoundError(resource, "")
	case errors.Is(err, ErrMediaNotFound):
		return apperrors.NewValidationError(ue.Label+" does not exist", ue.Field)
	case errors.Is(err, ErrInvalidCredentials):
		return apperrors.NewUnauthorizedError("Invalid credentials")
	case errors.Is(err, ErrForeignProfile):
		return apperrors.NewForbiddenError("Can't edit profile")
	case errors.Is(err, ErrForeignCollection):
		if ue.Op == "delete" {
			return apperrors.NewForbiddenError("Can't delete collection")
		}
		return apperrors.NewForbiddenError("Can't edit collection")
	case errors.Is(err, ErrCollectionExists):
		return apperrors.NewConflictError(ue.Label + " already exists in collection")
	case errors.Is(err, ErrResetThrottled):
		return apperrors.NewRateLimitedError("Request was throttled. Try again later.")
	default:
		return apperrors.NewDatabaseError(ue.Op, err)
	}
}
