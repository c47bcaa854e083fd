package database_test

import (
	"testing"
	"time"

	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }
func uintPtr(u uint) *uint    { return &u }

func seedCredit(t *testing.T, db *gorm.DB) (database.Person, database.StaffRole, database.Movie, database.Series) {
	t.Helper()
	person := database.Person{ExternalID: strPtr("nm0000001"), Name: "Fred Astaire"}
	role := database.StaffRole{Name: "actor"}
	movie := database.Movie{ExternalID: strPtr("tt0000001"), Title: "Carmencita"}
	series := database.Series{Title: "Some Show"}
	require.NoError(t, db.Create(&person).Error)
	require.NoError(t, db.Create(&role).Error)
	require.NoError(t, db.Create(&movie).Error)
	require.NoError(t, db.Create(&series).Error)
	return person, role, movie, series
}

func TestStaffRequiresExactlyOneParent(t *testing.T) {
	db := dbtest.New(t)
	person, role, movie, series := seedCredit(t, db)

	tests := []struct {
		name     string
		movieID  *uint
		seriesID *uint
		wantErr  bool
	}{
		{"movie only", uintPtr(movie.ID), nil, false},
		{"series only", nil, uintPtr(series.ID), false},
		{"neither", nil, nil, true},
		{"both", uintPtr(movie.ID), uintPtr(series.ID), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staff := database.Staff{PersonID: person.ID, RoleID: role.ID, MovieID: tt.movieID, SeriesID: tt.seriesID}
			err := db.Create(&staff).Error
			if tt.wantErr {
				assert.ErrorIs(t, err, database.ErrStaffParent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaffCheckConstraintBypassingHooks(t *testing.T) {
	db := dbtest.New(t)
	person, role, _, _ := seedCredit(t, db)

	err := db.Exec("INSERT INTO staff (person_id, role_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		person.ID, role.ID, time.Now(), time.Now()).Error
	assert.Error(t, err, "the store itself rejects parentless staff rows")
}

func TestRatingUniquePerUserAndMedia(t *testing.T) {
	db := dbtest.New(t)
	_, _, movie, _ := seedCredit(t, db)
	user := database.User{Email: "a@example.com", Username: "alice", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	assert.Len(t, user.ID, 36, "uuid assigned on create")

	require.NoError(t, db.Create(&database.MovieRating{MovieID: movie.ID, UserID: user.ID, Rating: 7}).Error)
	err := db.Create(&database.MovieRating{MovieID: movie.ID, UserID: user.ID, Rating: 3}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestRatingRangeConstraint(t *testing.T) {
	db := dbtest.New(t)
	_, _, movie, _ := seedCredit(t, db)

	assert.Error(t, db.Create(&database.MovieRating{MovieID: movie.ID, UserID: "u1", Rating: 0}).Error)
	assert.Error(t, db.Create(&database.MovieRating{MovieID: movie.ID, UserID: "u1", Rating: 11}).Error)
	assert.NoError(t, db.Create(&database.MovieRating{MovieID: movie.ID, UserID: "u1", Rating: 10}).Error)
}

func TestExternalIDUniqueButOptional(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, db.Create(&database.Person{Name: "Local One"}).Error)
	require.NoError(t, db.Create(&database.Person{Name: "Local One"}).Error, "names are not unique")
	require.NoError(t, db.Create(&database.Person{ExternalID: strPtr("nm1"), Name: "A"}).Error)

	err := db.Create(&database.Person{ExternalID: strPtr("nm1"), Name: "B"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestVideoRequiresExactlyOneParent(t *testing.T) {
	db := dbtest.New(t)
	_, _, movie, series := seedCredit(t, db)

	assert.NoError(t, db.Create(&database.Video{Type: database.VideoTypeTrailer, URL: "https://v/1", MovieID: uintPtr(movie.ID)}).Error)
	err := db.Create(&database.Video{Type: database.VideoTypeClip, URL: "https://v/2", MovieID: uintPtr(movie.ID), SeriesID: uintPtr(series.ID)}).Error
	assert.ErrorIs(t, err, database.ErrVideoParent)
}

func TestCollectionStatusValid(t *testing.T) {
	assert.True(t, database.CollectionInProgress.Valid())
	assert.False(t, database.CollectionStatus("watching").Valid())
}
