// Package filters turns list query parameters into gorm conditions
package filters

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mantonx/medialibrary/internal/database"
	catalogerrors "github.com/mantonx/medialibrary/internal/modules/catalogmodule/errors"
	"gorm.io/gorm"
)

// MediaFilter holds the list filters shared by movies, series and games
type MediaFilter struct {
	Title   string // case-insensitive substring
	Year    *int   // release year equals
	YearGTE *int   // release year at least
	YearLTE *int   // release year at most
	Genres  []uint // item must carry every one of these genres
}

// ParseMediaFilter reads title, release_date, release_date__gte,
// release_date__lte and repeated genres parameters
func ParseMediaFilter(kind database.MediaKind, values url.Values) (MediaFilter, error) {
	f := MediaFilter{Title: strings.TrimSpace(values.Get("title__icontains"))}
	if f.Title == "" {
		f.Title = strings.TrimSpace(values.Get("title"))
	}

	var err error
	if f.Year, err = parseYear(kind, values, "release_date"); err != nil {
		return f, err
	}
	if f.YearGTE, err = parseYear(kind, values, "release_date__gte"); err != nil {
		return f, err
	}
	if f.YearLTE, err = parseYear(kind, values, "release_date__lte"); err != nil {
		return f, err
	}

	seen := make(map[uint]bool)
	for _, raw := range values["genres"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return f, invalid(kind, "genres", "genres must be genre ids")
			}
			if !seen[uint(id)] {
				seen[uint(id)] = true
				f.Genres = append(f.Genres, uint(id))
			}
		}
	}
	return f, nil
}

func parseYear(kind database.MediaKind, values url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 || year > 9998 {
		return nil, invalid(kind, key, key+" must be a year")
	}
	return &year, nil
}

func invalid(kind database.MediaKind, field, msg string) error {
	return catalogerrors.New(catalogerrors.ErrorTypeValidation, kind, "list",
		fmt.Errorf("%w: %s", catalogerrors.ErrInvalidFilter, msg)).WithField(field)
}

// yearStart is midnight UTC on January 1st
func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Apply adds the filter conditions to a query on kind's table. Year
// filters compare against date ranges so the release_date index is usable.
func (f MediaFilter) Apply(query *gorm.DB, kind database.MediaKind) *gorm.DB {
	col := func(name string) string { return kind.Table + "." + name }

	if f.Title != "" {
		query = query.Where("LOWER("+col("title")+") LIKE ?", "%"+strings.ToLower(f.Title)+"%")
	}
	if f.Year != nil {
		query = query.Where(col("release_date")+" >= ? AND "+col("release_date")+" < ?",
			yearStart(*f.Year), yearStart(*f.Year+1))
	}
	if f.YearGTE != nil {
		query = query.Where(col("release_date")+" >= ?", yearStart(*f.YearGTE))
	}
	if f.YearLTE != nil {
		query = query.Where(col("release_date")+" < ?", yearStart(*f.YearLTE+1))
	}
	if len(f.Genres) > 0 {
		sub := fmt.Sprintf(
			"SELECT %[1]s FROM %[2]s WHERE media_genre_id IN ? GROUP BY %[1]s HAVING COUNT(DISTINCT media_genre_id) = ?",
			kind.ForeignKey, kind.GenreJoinTable)
		query = query.Where(col("id")+" IN ("+sub+")", f.Genres, len(f.Genres))
	}
	return query
}

// NameFilter applies a case-insensitive substring match on one column
func NameFilter(query *gorm.DB, column, value string) *gorm.DB {
	value = strings.TrimSpace(value)
	if value == "" {
		return query
	}
	return query.Where("LOWER("+column+") LIKE ?", "%"+strings.ToLower(value)+"%")
}
