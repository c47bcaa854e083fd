// Package job runs the feed import pipeline: fetch, normalize, reconcile
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/medialibrary/internal/database"
	"github.com/mantonx/medialibrary/internal/events"
	"github.com/mantonx/medialibrary/internal/logger"
	"github.com/mantonx/medialibrary/internal/metrics"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/feed"
	"github.com/mantonx/medialibrary/internal/modules/importmodule/reconcile"
	"github.com/mantonx/medialibrary/internal/services"
	"gorm.io/gorm"
)

const eventSource = "system.import"

// Trigger values recorded on import runs
const (
	TriggerScheduled = "scheduled"
	TriggerStartup   = "startup"
	TriggerManual    = "manual"
)

// ErrImportRunning is returned when a run is requested while another is active
var ErrImportRunning = services.ErrImportRunning

// Source is the subset of the feed reader the job needs
type Source interface {
	FetchTopMedia(ctx context.Context, limit int) ([]string, feed.BasicTable, error)
	FetchStaffFor(ctx context.Context, ids []string) (feed.StaffTable, error)
	FetchPeopleFor(ctx context.Context, personIDs []string) (feed.PeopleTable, error)
}

// Merger applies normalized records to the store
type Merger interface {
	Merge(ctx context.Context, records []feed.Record) (*reconcile.Result, error)
}

// Job imports the most voted titles. At most one run is active at a time.
type Job struct {
	db     *gorm.DB
	source Source
	merger Merger
	bus    events.EventBus
	log    hclog.Logger

	limit   atomic.Int64
	mu      sync.Mutex
	running atomic.Bool
}

var _ services.ImportService = (*Job)(nil)

// New creates a job importing limit titles per run. bus may be nil.
func New(db *gorm.DB, source Source, merger Merger, bus events.EventBus, limit int) *Job {
	j := &Job{db: db, source: source, merger: merger, bus: bus, log: logger.Named("import")}
	j.SetLimit(limit)
	return j
}

// SetLimit changes the number of titles imported by later runs
func (j *Job) SetLimit(limit int) {
	j.limit.Store(int64(limit))
}

// Limit returns the number of titles imported per run
func (j *Job) Limit() int {
	return int(j.limit.Load())
}

// Running reports whether a run is in progress
func (j *Job) Running() bool {
	return j.running.Load()
}

// Run executes one import and records it as an ImportRun. It returns
// ErrImportRunning without waiting when another run is active.
func (j *Job) Run(ctx context.Context, trigger string) (*database.ImportRun, error) {
	if !j.acquire() {
		return nil, ErrImportRunning
	}
	defer j.release()
	return j.run(ctx, trigger)
}

// Start claims the run slot before returning and imports in a goroutine.
// Failures of the background run are logged.
func (j *Job) Start(ctx context.Context, trigger string) error {
	if !j.acquire() {
		return ErrImportRunning
	}
	go func() {
		defer j.release()
		if _, err := j.run(ctx, trigger); err != nil {
			j.log.Error("import failed", "trigger", trigger, "error", err)
		}
	}()
	return nil
}

func (j *Job) acquire() bool {
	if !j.mu.TryLock() {
		return false
	}
	j.running.Store(true)
	return true
}

func (j *Job) release() {
	j.running.Store(false)
	j.mu.Unlock()
}

func (j *Job) run(ctx context.Context, trigger string) (*database.ImportRun, error) {
	run := &database.ImportRun{Trigger: trigger, Status: database.ImportStatusRunning, StartedAt: time.Now().UTC()}
	if err := j.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record import run: %w", err)
	}

	metrics.RecordImportStarted()
	j.publish(events.EventImportStarted, run, nil)
	j.log.Info("import started", "run", run.ID, "trigger", trigger, "limit", j.Limit())

	result, err := j.execute(ctx, run)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	duration := finished.Sub(run.StartedAt)
	if err != nil {
		run.Status = database.ImportStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = database.ImportStatusSucceeded
		run.Records = result.Records
		run.Created = result.Created
		run.Updated = result.Updated
		run.Unchanged = result.Unchanged
		run.GenresCreated = result.GenresCreated
		run.PeopleCreated = result.PeopleCreated
		run.RolesCreated = result.RolesCreated
		run.StaffCreated = result.StaffCreated
	}

	// the run row is finalized even when ctx was cancelled mid-import
	if saveErr := j.db.WithContext(context.WithoutCancel(ctx)).Save(run).Error; saveErr != nil {
		j.log.Error("failed to update import run", "run", run.ID, "error", saveErr)
	}

	if err != nil {
		metrics.RecordImportFinished(duration, 0, 0, 0, err)
		j.publish(events.EventImportFailed, run, map[string]interface{}{"error": err.Error()})
		return run, err
	}

	metrics.RecordImportFinished(duration, result.Created, result.Updated, result.Unchanged, nil)
	j.publish(events.EventImportCompleted, run, map[string]interface{}{"result": result})
	j.log.Info("import completed", "run", run.ID, "records", result.Records, "duration", duration)
	return run, nil
}

func (j *Job) execute(ctx context.Context, run *database.ImportRun) (*reconcile.Result, error) {
	ids, basics, err := j.source.FetchTopMedia(ctx, j.Limit())
	if err != nil {
		return nil, err
	}
	j.progress(run, "titles", len(ids))

	staff, err := j.source.FetchStaffFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	personIDs := staff.PersonIDs(ids)
	j.progress(run, "staff", len(personIDs))

	people, err := j.source.FetchPeopleFor(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	j.progress(run, "people", len(people))

	records := make([]feed.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := feed.Normalize(id, basics, staff, people); ok {
			records = append(records, rec)
		}
	}
	j.progress(run, "normalized", len(records))

	return j.merger.Merge(ctx, records)
}

// RunAndLog runs an import and logs a failure instead of returning it.
// A run skipped because another is active is logged at debug level.
func (j *Job) RunAndLog(ctx context.Context, trigger string) {
	_, err := j.Run(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrImportRunning):
		j.log.Debug("import skipped, another run is active", "trigger", trigger)
	default:
		j.log.Error("Failed to fetch movies", "error_type", fmt.Sprintf("%T", err), "error", err)
	}
}

func (j *Job) progress(run *database.ImportRun, stage string, count int) {
	j.log.Debug("import progress", "run", run.ID, "stage", stage, "count", count)
	j.publish(events.EventImportProgress, run, map[string]interface{}{"stage": stage, "count": count})
}

func (j *Job) publish(eventType events.EventType, run *database.ImportRun, extra map[string]interface{}) {
	if j.bus == nil {
		return
	}
	data := map[string]interface{}{
		"run_id":  run.ID,
		"trigger": run.Trigger,
		"status":  run.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	j.bus.Publish(events.NewEvent(eventType, eventSource, data))
}
