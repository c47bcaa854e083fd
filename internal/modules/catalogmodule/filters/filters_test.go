package filters

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/database/dbtest"
	catalogerrors "github.com/mantonx/medialibrary/internal/modules/catalogmodule/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func date(year int) *time.Time {
	d := time.Date(year, time.June, 15, 0, 0, 0, 0, time.UTC)
	return &d
}

type fixture struct {
	db                   *gorm.DB
	drama, comedy, crime database.MediaGenre
}

func seed(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t)
	f := fixture{
		db:     db,
		drama:  database.MediaGenre{Name: "Drama"},
		comedy: database.MediaGenre{Name: "Comedy"},
		crime:  database.MediaGenre{Name: "Crime"},
	}
	require.NoError(t, db.Create(&f.drama).Error)
	require.NoError(t, db.Create(&f.comedy).Error)
	require.NoError(t, db.Create(&f.crime).Error)

	movies := []database.Movie{
		{Title: "The Godfather", ReleaseDate: date(1972), Genres: []database.MediaGenre{f.drama, f.crime}},
		{Title: "Godfather Part II", ReleaseDate: date(1974), Genres: []database.MediaGenre{f.drama, f.crime}},
		{Title: "Airplane!", ReleaseDate: date(1980), Genres: []database.MediaGenre{f.comedy}},
		{Title: "Dramedy", ReleaseDate: date(1980), Genres: []database.MediaGenre{f.drama, f.comedy}},
		{Title: "Undated"},
	}
	for i := range movies {
		require.NoError(t, db.Create(&movies[i]).Error)
	}
	return f
}

func titles(t *testing.T, f fixture, raw string) []string {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	filter, err := ParseMediaFilter(database.MovieKind, values)
	require.NoError(t, err)

	var movies []database.Movie
	require.NoError(t, filter.Apply(f.db.Model(&database.Movie{}), database.MovieKind).Order("id").Find(&movies).Error)
	out := make([]string, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.Title)
	}
	return out
}

func TestTitleFilterIsCaseInsensitive(t *testing.T) {
	f := seed(t)
	assert.Equal(t, []string{"The Godfather", "Godfather Part II"}, titles(t, f, "title=godFATHER"))
	assert.Equal(t, []string{"Airplane!"}, titles(t, f, "title__icontains=PLANE"))
}

func TestYearFilters(t *testing.T) {
	f := seed(t)
	assert.Equal(t, []string{"Airplane!", "Dramedy"}, titles(t, f, "release_date=1980"))
	assert.Equal(t, []string{"Godfather Part II", "Airplane!", "Dramedy"}, titles(t, f, "release_date__gte=1974"))
	assert.Equal(t, []string{"The Godfather", "Godfather Part II"}, titles(t, f, "release_date__lte=1974"))
	assert.Equal(t, []string{"Godfather Part II"}, titles(t, f, "release_date__gte=1973&release_date__lte=1979"))
}

func TestGenresAreConjoined(t *testing.T) {
	f := seed(t)
	q := url.Values{"genres": {itoa(f.drama.ID), itoa(f.crime.ID)}}.Encode()
	assert.Equal(t, []string{"The Godfather", "Godfather Part II"}, titles(t, f, q))

	q = url.Values{"genres": {itoa(f.drama.ID) + "," + itoa(f.comedy.ID)}}.Encode()
	assert.Equal(t, []string{"Dramedy"}, titles(t, f, q))

	q = url.Values{"genres": {itoa(f.comedy.ID)}}.Encode()
	assert.Equal(t, []string{"Airplane!", "Dramedy"}, titles(t, f, q))
}

func TestCombinedFilters(t *testing.T) {
	f := seed(t)
	q := url.Values{"genres": {itoa(f.drama.ID)}, "release_date": {"1980"}}.Encode()
	assert.Equal(t, []string{"Dramedy"}, titles(t, f, q))
}

func TestParseRejectsMalformedValues(t *testing.T) {
	for _, raw := range []string{"release_date=abc", "release_date__gte=0", "genres=x", "genres=0"} {
		values, _ := url.ParseQuery(raw)
		_, err := ParseMediaFilter(database.MovieKind, values)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, catalogerrors.ErrInvalidFilter), raw)
		assert.Equal(t, 400, catalogerrors.ToAppError(err).HTTPStatus, raw)
	}
}

func TestNameFilter(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, db.Create(&database.Person{Name: "Al Pacino"}).Error)
	require.NoError(t, db.Create(&database.Person{Name: "Marlon Brando"}).Error)

	var people []database.Person
	require.NoError(t, NameFilter(db.Model(&database.Person{}), "name", "PACINO").Find(&people).Error)
	require.Len(t, people, 1)
	assert.Equal(t, "Al Pacino", people[0].Name)

	people = nil
	require.NoError(t, NameFilter(db.Model(&database.Person{}), "name", "  ").Find(&people).Error)
	assert.Len(t, people, 2)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
