package job

import (
	"context"
	"sync/atomic"
	"time"
)

// Runner is what the scheduler triggers
type Runner interface {
	RunAndLog(ctx context.Context, trigger string)
}

// Scheduler is a supervised service that runs the import periodically
type Scheduler struct {
	runner     Runner
	interval   atomic.Int64
	runOnStart bool
	reset      chan struct{}
}

// NewScheduler creates a scheduler. A non-positive interval disables periodic runs.
func NewScheduler(runner Runner, interval time.Duration, runOnStart bool) *Scheduler {
	s := &Scheduler{runner: runner, runOnStart: runOnStart, reset: make(chan struct{}, 1)}
	s.interval.Store(int64(interval))
	return s
}

// SetInterval changes the period; the next run is scheduled one new period from now
func (s *Scheduler) SetInterval(interval time.Duration) {
	if time.Duration(s.interval.Swap(int64(interval))) == interval {
		return
	}
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Interval returns the current period
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Serve implements suture.Service
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.runOnStart {
		s.runner.RunAndLog(ctx, TriggerStartup)
	}

	for {
		var tick <-chan time.Time
		var timer *time.Timer
		if interval := s.Interval(); interval > 0 {
			timer = time.NewTimer(interval)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-s.reset:
			if timer != nil {
				timer.Stop()
			}
		case <-tick:
			s.runner.RunAndLog(ctx, TriggerScheduled)
		}
	}
}

func (s *Scheduler) String() string {
	return "import-scheduler"
}
