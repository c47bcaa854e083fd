package feed

import (
	"strconv"
	"strings"
)

// StaffEntry is one credit of a normalized record
type StaffEntry struct {
	ExternalID string
	Name       string
	Role       string
}

// Record is one title ready for reconciliation
type Record struct {
	ExternalID string
	Title      string
	Duration   *int // minutes
	Year       *int
	Genres     []string
	Staff      []StaffEntry
}

// Normalize builds the record of mediaID from the fetched tables. It reports
// false when mediaID is not in basics. Credits of people missing from
// people are dropped.
func Normalize(mediaID string, basics BasicTable, staff StaffTable, people PeopleTable) (Record, bool) {
	basic, ok := basics[mediaID]
	if !ok {
		return Record{}, false
	}

	rec := Record{
		ExternalID: mediaID,
		Title:      basic.Title,
		Duration:   digits(basic.Runtime),
		Year:       digits(basic.StartYear),
	}

	for _, genre := range strings.Split(basic.Genres, ",") {
		genre = strings.TrimSpace(genre)
		if genre == "" || genre == nullValue {
			continue
		}
		rec.Genres = append(rec.Genres, genre)
	}

	for _, row := range staff[mediaID] {
		name, ok := people[row.PersonID]
		if !ok {
			continue
		}
		rec.Staff = append(rec.Staff, StaffEntry{ExternalID: row.PersonID, Name: name, Role: row.Category})
	}
	return rec, true
}

// digits parses s only when it is a non-empty run of ASCII digits
func digits(s string) *int {
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
