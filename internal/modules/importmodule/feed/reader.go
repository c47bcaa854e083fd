package feed

import (
	"context"
	"io"
	"sort"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Basic is one joined row of the basics and ratings feeds
type Basic struct {
	ID        string
	TitleType string
	Title     string
	Runtime   string
	StartYear string
	Genres    string
	Votes     int
}

// BasicTable indexes basics rows by title id
type BasicTable map[string]Basic

// StaffRow is one principals row
type StaffRow struct {
	MediaID  string
	PersonID string
	Category string
}

// StaffTable groups principals rows by title id, each group in feed order
type StaffTable map[string][]StaffRow

// PersonIDs returns every distinct person id, in the order of ids and then feed order
func (t StaffTable) PersonIDs(ids []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range ids {
		for _, row := range t[id] {
			if row.PersonID != "" && !seen[row.PersonID] {
				seen[row.PersonID] = true
				out = append(out, row.PersonID)
			}
		}
	}
	return out
}

// PeopleTable maps person ids to display names
type PeopleTable map[string]string

// Opener returns a decompressed feed stream
type Opener interface {
	Open(ctx context.Context, feed string) (io.ReadCloser, error)
}

// Reader pulls the subsets of the feeds an import needs
type Reader struct {
	opener    Opener
	titleType string
	log       hclog.Logger
}

// NewReader creates a reader keeping only titles of titleType
func NewReader(opener Opener, titleType string) *Reader {
	return &Reader{opener: opener, titleType: titleType, log: logger.Named("feed")}
}

// FetchTopMedia returns the ids of the limit most voted titles and the full
// joined basics table. Ties in votes go to the smaller id.
func (r *Reader) FetchTopMedia(ctx context.Context, limit int) ([]string, BasicTable, error) {
	if limit <= 0 {
		return nil, nil, ErrInvalidLimit
	}

	var (
		votes  map[string]int
		basics []Basic
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		votes, err = r.readVotes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		basics, err = r.readBasics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	table := make(BasicTable, len(basics))
	joined := make([]Basic, 0, len(basics))
	for _, b := range basics {
		v, ok := votes[b.ID]
		if !ok {
			continue
		}
		b.Votes = v
		table[b.ID] = b
		joined = append(joined, b)
	}

	sort.Slice(joined, func(i, j int) bool {
		if joined[i].Votes != joined[j].Votes {
			return joined[i].Votes > joined[j].Votes
		}
		return joined[i].ID < joined[j].ID
	})
	if len(joined) > limit {
		joined = joined[:limit]
	}

	ids := make([]string, len(joined))
	for i, b := range joined {
		ids[i] = b.ID
	}
	r.log.Info("top titles selected", "candidates", len(table), "selected", len(ids))
	return ids, table, nil
}

func (r *Reader) readVotes(ctx context.Context) (map[string]int, error) {
	votes := make(map[string]int)
	err := r.scan(ctx, RatingsFeed, func(t *table) bool {
		id := t.Get("tconst")
		if id == "" {
			return true
		}
		n, _ := strconv.Atoi(t.Value("numVotes"))
		votes[id] = n
		return true
	})
	return votes, err
}

// readBasics keeps the rows of the configured title type, first occurrence of each id
func (r *Reader) readBasics(ctx context.Context) ([]Basic, error) {
	seen := make(map[string]bool)
	var basics []Basic
	err := r.scan(ctx, BasicsFeed, func(t *table) bool {
		id := t.Get("tconst")
		if id == "" || seen[id] || t.Get("titleType") != r.titleType {
			return true
		}
		seen[id] = true
		basics = append(basics, Basic{
			ID:        id,
			TitleType: t.Get("titleType"),
			Title:     t.Get("primaryTitle"),
			Runtime:   t.Get("runtimeMinutes"),
			StartYear: t.Get("startYear"),
			Genres:    t.Get("genres"),
		})
		return true
	})
	return basics, err
}

// FetchStaffFor returns the principals rows of the given titles
func (r *Reader) FetchStaffFor(ctx context.Context, ids []string) (StaffTable, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	staff := make(StaffTable)
	err := r.scan(ctx, PrincipalsFeed, func(t *table) bool {
		id := t.Get("tconst")
		if !wanted[id] {
			return true
		}
		staff[id] = append(staff[id], StaffRow{
			MediaID:  id,
			PersonID: t.Value("nconst"),
			Category: t.Value("category"),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return staff, nil
}

// FetchPeopleFor returns the names of the given people. Reading stops once all are found.
func (r *Reader) FetchPeopleFor(ctx context.Context, personIDs []string) (PeopleTable, error) {
	wanted := make(map[string]bool, len(personIDs))
	for _, id := range personIDs {
		wanted[id] = true
	}

	people := make(PeopleTable, len(wanted))
	if len(wanted) == 0 {
		return people, nil
	}
	err := r.scan(ctx, NamesFeed, func(t *table) bool {
		id := t.Get("nconst")
		if !wanted[id] {
			return true
		}
		if _, dup := people[id]; !dup {
			people[id] = t.Value("primaryName")
		}
		return len(people) < len(wanted)
	})
	if err != nil {
		return nil, err
	}
	return people, nil
}

// scan feeds every row of feed to fn until fn returns false
func (r *Reader) scan(ctx context.Context, feed string, fn func(*table) bool) error {
	body, err := r.opener.Open(ctx, feed)
	if err != nil {
		return err
	}
	defer body.Close()

	t, err := newTable(body)
	if err != nil {
		return &FeedError{Feed: feed, Err: err}
	}

	rows := 0
	for t.Next() {
		rows++
		if !fn(t) {
			break
		}
	}
	if err := t.Err(); err != nil {
		return &FeedError{Feed: feed, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.log.Debug("feed scanned", "feed", feed, "rows", rows)
	return nil
}
