package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaffParent is returned when a staff row is not attached to exactly one of movie or series
var ErrStaffParent = errors.New("staff must reference exactly one of movie or series")

// ErrVideoParent is returned when a video is not attached to exactly one media item
var ErrVideoParent = errors.New("video must reference exactly one of movie, series or game")

// =============================================================================
// REFERENCE TABLES
// =============================================================================

// Person is anyone credited on a movie or series. ExternalID is the upstream
// feed identifier and is unique when present; locally authored people have none.
type Person struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID *string   `gorm:"size:32;uniqueIndex" json:"external_id,omitempty"`
	Name       string    `gorm:"size:255;not null;index" json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MediaGenre is shared by movies, series and games
type MediaGenre struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffRole labels a credit, e.g. "director" or "actor"
type StaffRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Company is the producer or distributor of a media item
type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// MEDIA TABLES
// =============================================================================

// Movie is a feature film. Rating is the average user rating, filled in by
// catalog queries and never persisted.
type Movie struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ExternalID  *string      `gorm:"size:32;uniqueIndex" json:"external_id,omitempty"`
	Title       string       `gorm:"size:255;not null;index" json:"title"`
	Description string       `gorm:"type:text;not null;default:''" json:"description"`
	ReleaseDate *time.Time   `gorm:"index" json:"release_date,omitempty"`
	Duration    *int         `json:"duration,omitempty"` // minutes
	CompanyID   *uint        `gorm:"index" json:"company_id,omitempty"`
	Company     *Company     `gorm:"constraint:OnDelete:SET NULL" json:"company,omitempty"`
	Genres      []MediaGenre `gorm:"many2many:movie_genres" json:"genres"`
	Staff       []Staff      `gorm:"foreignKey:MovieID" json:"staff,omitempty"`
	Photos      []Photo      `gorm:"foreignKey:MovieID" json:"photos,omitempty"`
	Videos      []Video      `gorm:"foreignKey:MovieID" json:"videos,omitempty"`
	Rating      float64      `gorm:"->;-:migration" json:"rating"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Series is an episodic show
type Series struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Title           string       `gorm:"size:255;not null;index" json:"title"`
	Description     string       `gorm:"type:text;not null;default:''" json:"description"`
	ReleaseDate     *time.Time   `gorm:"index" json:"release_date,omitempty"`
	Episodes        int          `gorm:"not null;default:0" json:"episodes"`
	EpisodeDuration *int         `json:"episode_duration,omitempty"` // minutes
	CompanyID       *uint        `gorm:"index" json:"company_id,omitempty"`
	Company         *Company     `gorm:"constraint:OnDelete:SET NULL" json:"company,omitempty"`
	Genres          []MediaGenre `gorm:"many2many:series_genres" json:"genres"`
	Staff           []Staff      `gorm:"foreignKey:SeriesID" json:"staff,omitempty"`
	Photos          []Photo      `gorm:"foreignKey:SeriesID" json:"photos,omitempty"`
	Videos          []Video      `gorm:"foreignKey:SeriesID" json:"videos,omitempty"`
	Rating          float64      `gorm:"->;-:migration" json:"rating"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName keeps the plural and singular forms identical
func (Series) TableName() string {
	return "series"
}

// Game is a video game. Games carry no staff credits.
type Game struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Title       string       `gorm:"size:255;not null;index" json:"title"`
	Description string       `gorm:"type:text;not null;default:''" json:"description"`
	ReleaseDate *time.Time   `gorm:"index" json:"release_date,omitempty"`
	CompanyID   *uint        `gorm:"index" json:"company_id,omitempty"`
	Company     *Company     `gorm:"constraint:OnDelete:SET NULL" json:"company,omitempty"`
	Genres      []MediaGenre `gorm:"many2many:game_genres" json:"genres"`
	Photos      []Photo      `gorm:"foreignKey:GameID" json:"photos,omitempty"`
	Videos      []Video      `gorm:"foreignKey:GameID" json:"videos,omitempty"`
	Rating      float64      `gorm:"->;-:migration" json:"rating"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Staff credits a person with a role on exactly one movie or series
type Staff struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PersonID  uint      `gorm:"not null;index" json:"person_id"`
	Person    Person    `gorm:"constraint:OnDelete:CASCADE" json:"person"`
	RoleID    uint      `gorm:"not null;index" json:"role_id"`
	Role      StaffRole `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"role"`
	MovieID   *uint     `gorm:"index;check:chk_staff_one_parent,(movie_id IS NULL) <> (series_id IS NULL)" json:"movie_id,omitempty"`
	SeriesID  *uint     `gorm:"index" json:"series_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the plural and singular forms identical
func (Staff) TableName() string {
	return "staff"
}

// BeforeSave rejects rows without exactly one media parent before they reach the store
func (s *Staff) BeforeSave(tx *gorm.DB) error {
	if (s.MovieID == nil) == (s.SeriesID == nil) {
		return ErrStaffParent
	}
	return nil
}

// =============================================================================
// PHOTOS AND VIDEOS
// =============================================================================

// PhotoType classifies a photo
type PhotoType string

const (
	PhotoTypePoster       PhotoType = "poster"
	PhotoTypeStill        PhotoType = "still"
	PhotoTypeAvatar       PhotoType = "avatar"
	PhotoTypeVideoPreview PhotoType = "video_preview"
)

// Photo is image metadata; the file itself lives in external storage
type Photo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *string   `gorm:"size:36;index" json:"user_id,omitempty"`
	Type      PhotoType `gorm:"size:32;not null" json:"type"`
	URL       string    `gorm:"size:1024;not null" json:"url"`
	MovieID   *uint     `gorm:"index" json:"movie_id,omitempty"`
	SeriesID  *uint     `gorm:"index" json:"series_id,omitempty"`
	GameID    *uint     `gorm:"index" json:"game_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VideoType classifies a video
type VideoType string

const (
	VideoTypeTrailer VideoType = "trailer"
	VideoTypeTeaser  VideoType = "teaser"
	VideoTypeClip    VideoType = "clip"
)

// Video is video metadata attached to exactly one media item
type Video struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *string   `gorm:"size:36;index" json:"user_id,omitempty"`
	Type      VideoType `gorm:"size:32;not null" json:"type"`
	URL       string    `gorm:"size:1024;not null" json:"url"`
	PreviewID *uint     `json:"preview_id,omitempty"`
	Preview   *Photo    `gorm:"foreignKey:PreviewID;constraint:OnDelete:SET NULL" json:"preview,omitempty"`
	MovieID   *uint     `gorm:"index;check:chk_video_one_parent,(CASE WHEN movie_id IS NULL THEN 0 ELSE 1 END + CASE WHEN series_id IS NULL THEN 0 ELSE 1 END + CASE WHEN game_id IS NULL THEN 0 ELSE 1 END) = 1" json:"movie_id,omitempty"`
	SeriesID  *uint     `gorm:"index" json:"series_id,omitempty"`
	GameID    *uint     `gorm:"index" json:"game_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave rejects videos without exactly one media parent
func (v *Video) BeforeSave(tx *gorm.DB) error {
	parents := 0
	for _, id := range []*uint{v.MovieID, v.SeriesID, v.GameID} {
		if id != nil {
			parents++
		}
	}
	if parents != 1 {
		return ErrVideoParent
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

// User is an account. TokenVersion is bumped on login and password changes,
// which invalidates every token issued before.
type User struct {
	ID           string     `gorm:"size:36;primaryKey" json:"id"`
	Email        string     `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Username     string     `gorm:"size:45;not null;uniqueIndex" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	IsStaff      bool       `gorm:"not null;default:false" json:"is_staff"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	AvatarID     *uint      `json:"avatar_id,omitempty"`
	Avatar       *Photo     `gorm:"foreignKey:AvatarID;constraint:OnDelete:SET NULL" json:"avatar,omitempty"`
	TokenVersion int        `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate assigns a random UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// =============================================================================
// IMPORT HISTORY
// =============================================================================

// ImportStatus is the state of one import run
type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusSucceeded ImportStatus = "succeeded"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportRun records one execution of the feed import job
type ImportRun struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Trigger       string       `gorm:"size:32;not null" json:"trigger"`
	Status        ImportStatus `gorm:"size:16;not null;index" json:"status"`
	StartedAt     time.Time    `gorm:"not null;index" json:"started_at"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	Records       int          `json:"records"`
	Created       int          `json:"created"`
	Updated       int          `json:"updated"`
	Unchanged     int          `json:"unchanged"`
	GenresCreated int          `json:"genres_created"`
	PeopleCreated int          `json:"people_created"`
	RolesCreated  int          `json:"roles_created"`
	StaffCreated  int          `json:"staff_created"`
	Error         string       `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
