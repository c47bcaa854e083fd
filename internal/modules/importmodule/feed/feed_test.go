package feed

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gz(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func feedServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixtures(t *testing.T) map[string][]byte {
	return map[string][]byte{
		RatingsFeed: gz(t,
			"tconst\taverageRating\tnumVotes",
			"tt01\t9.0\t500",
			"tt02\t8.0\t900",
			"tt03\t7.0\t500",
			"tt04\t6.0\t2000",
			"tt05\t5.0\t100",
		),
		BasicsFeed: gz(t,
			"tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres",
			"tt01\tmovie\tFirst\tFirst\t0\t1994\t\\N\t142\tDrama",
			"tt02\tmovie\tSecond\tSecond\t0\t1972\t\\N\t175\tCrime,Drama",
			"tt02\tmovie\tSecond Copy\tSecond Copy\t0\t1972\t\\N\t1\tComedy",
			"tt03\tmovie\tThird\tThird\t0\t\\N\t\\N\t\\N\t\\N",
			"tt04\ttvSeries\tShow\tShow\t0\t2008\t2013\t49\tDrama",
			"tt06\tmovie\tUnrated\tUnrated\t0\t2000\t\\N\t90\tDrama",
			"tt05\tmovie\tShort row",
		),
		PrincipalsFeed: gz(t,
			"tconst\tordering\tnconst\tcategory\tjob\tcharacters",
			"tt01\t1\tnm1\tactor\t\\N\t[\"Andy\"]",
			"tt02\t1\tnm2\tactor\t\\N\t\\N",
			"tt01\t2\tnm3\tdirector\t\\N\t\\N",
			"tt09\t1\tnm9\tactor\t\\N\t\\N",
			"tt01\t3\tnm4\twriter\t\\N\t\\N",
		),
		NamesFeed: gz(t,
			"nconst\tprimaryName\tbirthYear",
			"nm1\tTim Robbins\t1958",
			"nm2\tMarlon Brando\t1924",
			"nm2\tMarlon Brando Again\t1924",
			"nm3\tFrank Darabont\t1959",
		),
	}
}

func newTestReader(t *testing.T, files map[string][]byte) *Reader {
	srv := feedServer(t, files)
	return NewReader(NewClient(srv.URL, 5*time.Second), "movie")
}

func TestFetchTopMedia(t *testing.T) {
	r := newTestReader(t, fixtures(t))

	ids, basics, err := r.FetchTopMedia(context.Background(), 3)
	require.NoError(t, err)
	// tt04 is a series, tt06 has no ratings; tt01 and tt03 tie and go by id
	assert.Equal(t, []string{"tt02", "tt01", "tt03"}, ids)
	assert.Len(t, basics, 4)
	assert.Equal(t, "Second", basics["tt02"].Title, "first occurrence wins")
	assert.Equal(t, 900, basics["tt02"].Votes)
	assert.Equal(t, "", basics["tt05"].Runtime, "short rows read as empty")

	ids, _, err = r.FetchTopMedia(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}

func TestFetchTopMediaRejectsLimit(t *testing.T) {
	r := newTestReader(t, fixtures(t))
	_, _, err := r.FetchTopMedia(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestFetchStaffAndPeople(t *testing.T) {
	r := newTestReader(t, fixtures(t))
	ctx := context.Background()

	staff, err := r.FetchStaffFor(ctx, []string{"tt01", "tt02"})
	require.NoError(t, err)
	require.Len(t, staff["tt01"], 3)
	assert.Equal(t, []string{"nm1", "nm3", "nm4"}, []string{staff["tt01"][0].PersonID, staff["tt01"][1].PersonID, staff["tt01"][2].PersonID})
	assert.NotContains(t, staff, "tt09")

	personIDs := staff.PersonIDs([]string{"tt01", "tt02"})
	assert.Equal(t, []string{"nm1", "nm3", "nm4", "nm2"}, personIDs)

	people, err := r.FetchPeopleFor(ctx, personIDs)
	require.NoError(t, err)
	assert.Equal(t, PeopleTable{"nm1": "Tim Robbins", "nm2": "Marlon Brando", "nm3": "Frank Darabont"}, people)
}

// flushedPrefix gzips lines and cuts the stream right after a sync flush, so
// the rows decode but reading past them fails
func flushedPrefix(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	return append([]byte(nil), buf.Bytes()...)
}

func TestFetchPeopleStopsOnceAllFound(t *testing.T) {
	files := fixtures(t)
	files[NamesFeed] = flushedPrefix(t,
		"nconst\tprimaryName\tbirthYear",
		"nm1\tTim Robbins\t1958",
		"nm2\tMarlon Brando\t1924",
	)
	r := newTestReader(t, files)
	ctx := context.Background()

	people, err := r.FetchPeopleFor(ctx, []string{"nm2", "nm1"})
	require.NoError(t, err)
	assert.Equal(t, PeopleTable{"nm1": "Tim Robbins", "nm2": "Marlon Brando"}, people)

	// a missing id keeps the scan going into the broken tail
	_, err = r.FetchPeopleFor(ctx, []string{"nm1", "nm7"})
	var feedErr *FeedError
	require.True(t, errors.As(err, &feedErr))
	assert.Equal(t, NamesFeed, feedErr.Feed)
}

func TestFetchPeopleMapsNullName(t *testing.T) {
	files := fixtures(t)
	files[NamesFeed] = gz(t,
		"nconst\tprimaryName\tbirthYear",
		"nm1\t\\N\t\\N",
	)
	r := newTestReader(t, files)

	people, err := r.FetchPeopleFor(context.Background(), []string{"nm1"})
	require.NoError(t, err)
	assert.Equal(t, PeopleTable{"nm1": ""}, people)
}

func TestFeedErrors(t *testing.T) {
	files := fixtures(t)
	delete(files, PrincipalsFeed)
	files[NamesFeed] = []byte("not gzip at all")
	r := newTestReader(t, files)
	ctx := context.Background()

	_, err := r.FetchStaffFor(ctx, []string{"tt01"})
	var feedErr *FeedError
	require.True(t, errors.As(err, &feedErr))
	assert.Equal(t, PrincipalsFeed, feedErr.Feed)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = r.FetchPeopleFor(ctx, []string{"nm1"})
	require.True(t, errors.As(err, &feedErr))
	assert.Equal(t, NamesFeed, feedErr.Feed)
}

func TestTruncatedFeedFails(t *testing.T) {
	files := fixtures(t)
	full := files[RatingsFeed]
	files[RatingsFeed] = full[:len(full)-10]
	r := newTestReader(t, files)

	_, _, err := r.FetchTopMedia(context.Background(), 3)
	var feedErr *FeedError
	require.True(t, errors.As(err, &feedErr))
	assert.Equal(t, RatingsFeed, feedErr.Feed)
}

func TestNormalize(t *testing.T) {
	basics := BasicTable{
		"tt01": {ID: "tt01", Title: "First", Runtime: "142", StartYear: "1994", Genres: "Drama,,Crime"},
		"tt03": {ID: "tt03", Title: "Third", Runtime: `\N`, StartYear: `\N`, Genres: `\N`},
		"tt07": {ID: "tt07", Title: "Odd", Runtime: "90m", Genres: ""},
	}
	staff := StaffTable{"tt01": {
		{MediaID: "tt01", PersonID: "nm1", Category: "actor"},
		{MediaID: "tt01", PersonID: "nm404", Category: "actor"},
		{MediaID: "tt01", PersonID: "nm3", Category: "director"},
	}}
	people := PeopleTable{"nm1": "Tim Robbins", "nm3": "Frank Darabont"}

	rec, ok := Normalize("tt01", basics, staff, people)
	require.True(t, ok)
	assert.Equal(t, "First", rec.Title)
	require.NotNil(t, rec.Duration)
	assert.Equal(t, 142, *rec.Duration)
	require.NotNil(t, rec.Year)
	assert.Equal(t, 1994, *rec.Year)
	assert.Equal(t, []string{"Drama", "Crime"}, rec.Genres)
	assert.Equal(t, []StaffEntry{
		{ExternalID: "nm1", Name: "Tim Robbins", Role: "actor"},
		{ExternalID: "nm3", Name: "Frank Darabont", Role: "director"},
	}, rec.Staff)

	rec, ok = Normalize("tt03", basics, staff, people)
	require.True(t, ok)
	assert.Nil(t, rec.Duration)
	assert.Nil(t, rec.Year)
	assert.Empty(t, rec.Genres)
	assert.Empty(t, rec.Staff)

	rec, ok = Normalize("tt07", basics, staff, people)
	require.True(t, ok)
	assert.Nil(t, rec.Duration)

	_, ok = Normalize("tt99", basics, staff, people)
	assert.False(t, ok)
}
