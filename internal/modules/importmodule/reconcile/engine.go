// Package reconcile merges normalized feed records into the store with
// set-based statements inside a single transaction
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/config"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/feed"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 200

// Result counts what one merge changed
type Result struct {
	Records       int `json:"records"`
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	Unchanged     int `json:"unchanged"`
	GenresCreated int `json:"genres_created"`
	PeopleCreated int `json:"people_created"`
	RolesCreated  int `json:"roles_created"`
	StaffCreated  int `json:"staff_created"`
}

// Options tunes the engine
type Options struct {
	// UpdateFields are the movie columns refreshed on existing rows
	UpdateFields []string
	BatchSize    int
}

// Engine reconciles feed records with the store
type Engine struct {
	tx           services.Transactor
	updateFields []string
	batchSize    int
	log          hclog.Logger
}

// NewEngine creates an engine. Unknown update fields are ignored.
func NewEngine(tx services.Transactor, opts Options) *Engine {
	fields := make([]string, 0, len(opts.UpdateFields))
	for _, f := range opts.UpdateFields {
		if config.AllowedUpdateFields[f] {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		fields = append(fields, config.DefaultUpdateFields...)
	}
	size := opts.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	return &Engine{tx: tx, updateFields: fields, batchSize: size, log: logger.Named("reconcile")}
}

// UpdateFields returns the columns refreshed on existing movies
func (e *Engine) UpdateFields() []string {
	return e.updateFields
}

// Merge applies records in one transaction. Any failure rolls back the whole batch.
// A record repeated in the batch is applied once, first occurrence winning.
func (e *Engine) Merge(ctx context.Context, records []feed.Record) (*Result, error) {
	records = dedupe(records)
	res := &Result{Records: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	start := time.Now()
	err := e.tx.WithTransaction(ctx, func(tx *gorm.DB) error {
		m := &merge{Engine: e, tx: tx, records: records, res: res}
		return m.run()
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("merge complete",
		"records", res.Records,
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"staff_created", res.StaffCreated,
		"duration", time.Since(start))
	return res, nil
}

func dedupe(records []feed.Record) []feed.Record {
	seen := make(map[string]bool, len(records))
	out := make([]feed.Record, 0, len(records))
	for _, r := range records {
		if r.ExternalID == "" || seen[r.ExternalID] {
			continue
		}
		seen[r.ExternalID] = true
		out = append(out, r)
	}
	return out
}

// merge holds the state of one Merge call
type merge struct {
	*Engine
	tx      *gorm.DB
	records []feed.Record
	res     *Result

	movies map[string]uint // external id -> movie id
	genres map[string]uint
	people map[string]uint // external id -> person id
	roles  map[string]uint
}

func (m *merge) run() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"genres", m.ensureGenres},
		{"people", m.ensurePeople},
		{"movies", m.upsertMovies},
		{"movie genres", m.replaceGenres},
		{"roles", m.ensureRoles},
		{"staff", m.addStaff},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("reconcile %s: %w", step.name, err)
		}
	}
	return nil
}

func (m *merge) ensureGenres() error {
	var names []string
	for _, r := range m.records {
		names = append(names, r.Genres...)
	}
	ids, created, err := ensureNamed(m.tx, unique(names), m.batchSize,
		func(name string) database.MediaGenre { return database.MediaGenre{Name: name} })
	if err != nil {
		return err
	}
	m.genres = ids
	m.res.GenresCreated = created
	return nil
}

func (m *merge) ensureRoles() error {
	var names []string
	for _, r := range m.records {
		for _, s := range r.Staff {
			names = append(names, s.Role)
		}
	}
	ids, created, err := ensureNamed(m.tx, unique(names), m.batchSize,
		func(name string) database.StaffRole { return database.StaffRole{Name: name} })
	if err != nil {
		return err
	}
	m.roles = ids
	m.res.RolesCreated = created
	return nil
}

// ensureNamed loads the rows of a unique-name table, inserts the missing
// names and returns name -> id for all of them
func ensureNamed[T any](tx *gorm.DB, names []string, batchSize int, build func(string) T) (map[string]uint, int, error) {
	ids := make(map[string]uint, len(names))
	if len(names) == 0 {
		return ids, 0, nil
	}
	model := new(T)

	load := func(batch []string) error {
		var rows []namedRow
		if err := tx.Model(model).Select("id", "name").Where("name IN ?", batch).Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			ids[row.Name] = row.ID
		}
		return nil
	}
	for _, batch := range chunk(names, batchSize) {
		if err := load(batch); err != nil {
			return nil, 0, err
		}
	}

	var missing []string
	var rows []T
	for _, name := range names {
		if _, ok := ids[name]; !ok {
			missing = append(missing, name)
			rows = append(rows, build(name))
		}
	}
	if len(rows) == 0 {
		return ids, 0, nil
	}

	insert := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, batchSize)
	if insert.Error != nil {
		return nil, 0, insert.Error
	}
	for _, batch := range chunk(missing, batchSize) {
		if err := load(batch); err != nil {
			return nil, 0, err
		}
	}
	return ids, int(insert.RowsAffected), nil
}

type namedRow struct {
	ID   uint
	Name string
}

// ensurePeople inserts unknown people by external id. A concurrent insert of
// the same person is skipped by the conflict clause and picked up by the re-query.
func (m *merge) ensurePeople() error {
	names := make(map[string]string)
	var extIDs []string
	for _, r := range m.records {
		for _, s := range r.Staff {
			if s.ExternalID == "" {
				continue
			}
			if _, ok := names[s.ExternalID]; !ok {
				names[s.ExternalID] = s.Name
				extIDs = append(extIDs, s.ExternalID)
			}
		}
	}

	m.people = make(map[string]uint, len(extIDs))
	if len(extIDs) == 0 {
		return nil
	}
	if err := m.loadPeople(extIDs); err != nil {
		return err
	}

	var missing []string
	var rows []database.Person
	for _, id := range extIDs {
		if _, ok := m.people[id]; !ok {
			extID := id
			missing = append(missing, id)
			rows = append(rows, database.Person{ExternalID: &extID, Name: names[id]})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	insert := m.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoNothing: true,
	}).CreateInBatches(&rows, m.batchSize)
	if insert.Error != nil {
		return insert.Error
	}
	m.res.PeopleCreated = int(insert.RowsAffected)
	return m.loadPeople(missing)
}

func (m *merge) loadPeople(extIDs []string) error {
	for _, batch := range chunk(extIDs, m.batchSize) {
		var rows []database.Person
		if err := m.tx.Select("id", "external_id").Where("external_id IN ?", batch).Find(&rows).Error; err != nil {
			return err
		}
		for _, p := range rows {
			if p.ExternalID != nil {
				m.people[*p.ExternalID] = p.ID
			}
		}
	}
	return nil
}

// upsertMovies inserts the new movies and writes every changed existing
// movie in a single upsert statement
func (m *merge) upsertMovies() error {
	extIDs := make([]string, len(m.records))
	for i, r := range m.records {
		extIDs[i] = r.ExternalID
	}

	existing := make(map[string]database.Movie, len(extIDs))
	for _, batch := range chunk(extIDs, m.batchSize) {
		var rows []database.Movie
		if err := m.tx.Where("external_id IN ?", batch).Find(&rows).Error; err != nil {
			return err
		}
		for _, mv := range rows {
			existing[*mv.ExternalID] = mv
		}
	}

	m.movies = make(map[string]uint, len(extIDs))
	var creates, changed []database.Movie
	for _, r := range m.records {
		current, ok := existing[r.ExternalID]
		if !ok {
			creates = append(creates, newMovie(r))
			continue
		}
		m.movies[r.ExternalID] = current.ID
		if next, dirty := m.applyUpdate(current, r); dirty {
			changed = append(changed, next)
		} else {
			m.res.Unchanged++
		}
	}

	if len(creates) > 0 {
		if err := m.tx.Omit(clause.Associations).CreateInBatches(&creates, m.batchSize).Error; err != nil {
			return err
		}
		for _, mv := range creates {
			m.movies[*mv.ExternalID] = mv.ID
		}
		m.res.Created = len(creates)
	}

	if len(changed) > 0 {
		columns := append(append([]string{}, m.updateFields...), "updated_at")
		err := m.tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&changed).Error
		if err != nil {
			return err
		}
		m.res.Updated = len(changed)
	}
	return nil
}

func newMovie(r feed.Record) database.Movie {
	extID := r.ExternalID
	return database.Movie{
		ExternalID:  &extID,
		Title:       r.Title,
		Duration:    r.Duration,
		ReleaseDate: releaseDate(r.Year),
	}
}

// applyUpdate returns the upsert row for current when any configured field differs
func (m *merge) applyUpdate(current database.Movie, r feed.Record) (database.Movie, bool) {
	next := current
	next.ID = 0
	next.CreatedAt = time.Time{}
	next.UpdatedAt = time.Time{}

	dirty := false
	for _, field := range m.updateFields {
		switch field {
		case "title":
			if current.Title != r.Title {
				next.Title = r.Title
				dirty = true
			}
		case "duration":
			if !equalInt(current.Duration, r.Duration) {
				next.Duration = r.Duration
				dirty = true
			}
		case "release_date":
			date := releaseDate(r.Year)
			if !equalDate(current.ReleaseDate, date) {
				next.ReleaseDate = date
				dirty = true
			}
		}
	}
	return next, dirty
}

// replaceGenres sets the genres of every record that carries any
func (m *merge) replaceGenres() error {
	var movieIDs []uint
	var links []movieGenre
	for _, r := range m.records {
		if len(r.Genres) == 0 {
			continue
		}
		movieID := m.movies[r.ExternalID]
		movieIDs = append(movieIDs, movieID)
		seen := make(map[uint]bool)
		for _, name := range r.Genres {
			genreID, ok := m.genres[name]
			if !ok || seen[genreID] {
				continue
			}
			seen[genreID] = true
			links = append(links, movieGenre{MovieID: movieID, MediaGenreID: genreID})
		}
	}
	if len(movieIDs) == 0 {
		return nil
	}

	for _, batch := range chunk(movieIDs, m.batchSize) {
		if err := m.tx.Where("movie_id IN ?", batch).Delete(&movieGenre{}).Error; err != nil {
			return err
		}
	}
	if len(links) == 0 {
		return nil
	}
	return m.tx.CreateInBatches(&links, m.batchSize).Error
}

// movieGenre is a row of the movies/genres join table
type movieGenre struct {
	MovieID      uint `gorm:"primaryKey;autoIncrement:false"`
	MediaGenreID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (movieGenre) TableName() string {
	return database.MovieKind.GenreJoinTable
}

type staffKey struct {
	movie, person, role uint
}

// addStaff inserts the credits not yet present. Existing credits are never removed.
func (m *merge) addStaff() error {
	var movieIDs []uint
	for _, r := range m.records {
		if len(r.Staff) > 0 {
			movieIDs = append(movieIDs, m.movies[r.ExternalID])
		}
	}
	if len(movieIDs) == 0 {
		return nil
	}

	current := make(map[staffKey]bool)
	for _, batch := range chunk(movieIDs, m.batchSize) {
		var rows []database.Staff
		if err := m.tx.Select("movie_id", "person_id", "role_id").Where("movie_id IN ?", batch).Find(&rows).Error; err != nil {
			return err
		}
		for _, s := range rows {
			current[staffKey{movie: *s.MovieID, person: s.PersonID, role: s.RoleID}] = true
		}
	}

	var rows []database.Staff
	for _, r := range m.records {
		movieID := m.movies[r.ExternalID]
		for _, s := range r.Staff {
			personID, ok := m.people[s.ExternalID]
			if !ok {
				continue
			}
			roleID, ok := m.roles[s.Role]
			if !ok {
				continue
			}
			key := staffKey{movie: movieID, person: personID, role: roleID}
			if current[key] {
				continue
			}
			current[key] = true
			id := movieID
			rows = append(rows, database.Staff{PersonID: personID, RoleID: roleID, MovieID: &id})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := m.tx.Omit(clause.Associations).CreateInBatches(&rows, m.batchSize).Error; err != nil {
		return err
	}
	m.res.StaffCreated = len(rows)
	return nil
}

func releaseDate(year *int) *time.Time {
	if year == nil {
		return nil
	}
	d := time.Date(*year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Format(time.DateOnly) == b.UTC().Format(time.DateOnly)
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
