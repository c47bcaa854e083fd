package services

import (
	"context"
	"errors"

	"github.com/mantonx/medialibrary/internal/database"
	"gorm.io/gorm"
)

// Transactor runs a unit of work inside one database transaction.
// fn's error rolls the transaction back and is returned unchanged.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CatalogService exposes catalog lookups to other modules
type CatalogService interface {
	// MediaExists reports whether a media item of the given kind exists
	MediaExists(ctx context.Context, kind database.MediaKind, id uint) (bool, error)

	// AverageRating returns the rounded average rating of a media item, 0 when unrated
	AverageRating(ctx context.Context, kind database.MediaKind, id uint) (float64, error)
}

// AuthService resolves bearer tokens to users
type AuthService interface {
	// Authenticate validates a token and returns its user.
	// Tokens issued before the user's last login or password change are rejected.
	Authenticate(ctx context.Context, token string) (*database.User, error)
}

// ErrImportRunning is returned when an import is requested while another is active
var ErrImportRunning = errors.New("import already running")

// ImportService runs the external feed import
type ImportService interface {
	// Run imports the feed synchronously. It fails fast when a run is already active.
	Run(ctx context.Context, trigger string) (*database.ImportRun, error)

	// Start claims the run slot and imports in the background. It returns
	// ErrImportRunning when the slot is taken.
	Start(ctx context.Context, trigger string) error

	// Running reports whether an import is in progress
	Running() bool
}
