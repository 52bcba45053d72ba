// Package scheduler fires the reminder trigger: at most one activation per
// scheduled tick, on enabled weekdays at a fixed wall-clock time. The
// trigger is an explicit lifecycle object owned by the process entry
// point; only one process instance may run it at a time, which deployments
// enforce with the instance selector in configuration.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a running trigger.
	ErrAlreadyStarted = errors.New("scheduler: already started")
	// ErrNotStarted is returned when Stop is called on a stopped trigger.
	ErrNotStarted = errors.New("scheduler: not started")
	// ErrNoWeekdays is returned when the weekday mask enables nothing.
	ErrNoWeekdays = errors.New("scheduler: no weekdays enabled")
)

// Schedule describes when the trigger fires.
type Schedule struct {
	Hour     int
	Minute   int
	Weekdays map[time.Weekday]bool
	Location *time.Location
}

// RunFunc is the tick body. Ticks run synchronously in the trigger
// goroutine, so they never overlap.
type RunFunc func(ctx context.Context)

// Trigger fires a RunFunc on the configured cadence.
type Trigger struct {
	schedule Schedule
	run      RunFunc
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a trigger. The schedule location defaults to the local zone.
func New(schedule Schedule, run RunFunc, logger *slog.Logger) *Trigger {
	if schedule.Location == nil {
		schedule.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		schedule: schedule,
		run:      run,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNowFunc overrides the time source. Must be called before Start.
func (t *Trigger) SetNowFunc(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Start launches the trigger goroutine. ctx cancellation stops it the same
// way Stop does.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrAlreadyStarted
	}
	if !anyEnabled(t.schedule.Weekdays) {
		return ErrNoWeekdays
	}

	t.started = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.loop(ctx)
	return nil
}

// Stop halts the trigger and waits for the goroutine to exit.
func (t *Trigger) Stop() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return ErrNotStarted
	}
	t.started = false
	close(t.stopCh)
	done := t.doneCh
	t.mu.Unlock()

	<-done
	return nil
}

// Started reports whether the trigger is running.
func (t *Trigger) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// NextFire returns the first scheduled instant strictly after from.
func (t *Trigger) NextFire(from time.Time) time.Time {
	from = from.In(t.schedule.Location)
	for day := 0; day <= 7; day++ {
		candidate := time.Date(
			from.Year(), from.Month(), from.Day()+day,
			t.schedule.Hour, t.schedule.Minute, 0, 0,
			t.schedule.Location,
		)
		if t.schedule.Weekdays[candidate.Weekday()] && candidate.After(from) {
			return candidate
		}
	}
	// Unreachable with a non-empty mask; Start rejects empty masks.
	return from.AddDate(0, 0, 7)
}

func (t *Trigger) loop(ctx context.Context) {
	defer close(t.doneCh)

	for {
		next := t.NextFire(t.now())
		t.logger.Info("next reminder scheduled", "at", next)
		timer := time.NewTimer(next.Sub(t.now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			t.run(ctx)
		}
	}
}

func anyEnabled(weekdays map[time.Weekday]bool) bool {
	for _, enabled := range weekdays {
		if enabled {
			return true
		}
	}
	return false
}
