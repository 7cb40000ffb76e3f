// Package scheduler is the process-wide timer service driving time-based test
// transitions. Jobs are keyed by string id with replace-on-schedule
// semantics: at most one pending timer per id. A single loop goroutine sleeps
// until the next due job and fires callbacks asynchronously; fired jobs are
// removed and never retried (fire-once-best-effort — the state flips they
// drive are idempotently re-derivable from start_time + duration).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/rs/zerolog/log"
)

// Callback runs outside the timer loop in its own goroutine; implementations
// open their own transactional context against the store.
type Callback func(ctx context.Context)

type job struct {
	id     string
	fireAt time.Time
	fn     Callback
}

type Scheduler struct {
	clock Clock

	mu   sync.Mutex
	jobs map[string]*job

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func New(clock Clock) *Scheduler {
	return &Scheduler{
		clock: clock,
		jobs:  make(map[string]*job),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Start launches the timer loop. Safe to call once; Stop terminates it.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Schedule registers fn to fire at fireAt, replacing any pending job with the
// same id.
func (s *Scheduler) Schedule(id string, fireAt time.Time, fn Callback) {
	s.mu.Lock()
	s.jobs[id] = &job{id: id, fireAt: fireAt, fn: fn}
	s.mu.Unlock()
	s.poke()
	log.Debug().Str("job_id", id).Time("fire_at", fireAt).Msg("scheduler: job scheduled")
}

// Reschedule moves an existing job to a new fire time, keeping its callback.
func (s *Scheduler) Reschedule(id string, fireAt time.Time) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		j.fireAt = fireAt
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("reschedule %q: %w", id, apperr.ErrJobNotFound)
	}
	s.poke()
	log.Debug().Str("job_id", id).Time("fire_at", fireAt).Msg("scheduler: job rescheduled")
	return nil
}

// Cancel drops a pending job. Canceling an absent id is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if ok {
		s.poke()
		log.Debug().Str("job_id", id).Msg("scheduler: job canceled")
	}
}

// Pending reports whether a job id has a timer waiting to fire.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	for {
		now := s.clock.Now()
		due, nextAt, hasNext := s.collectDue(now)
		for _, j := range due {
			go s.fire(j)
		}

		var timer <-chan time.Time
		if hasNext {
			timer = s.clock.After(nextAt.Sub(now))
		}

		select {
		case <-s.done:
			return
		case <-s.wake:
		case <-timer:
		}
	}
}

// collectDue removes and returns every job due at now, plus the earliest
// remaining fire time. The time is copied out under the lock: pending jobs
// stay in the map where Reschedule mutates them, so the loop must not hold a
// pointer into it. Due jobs have been removed and are safe to hand off.
func (s *Scheduler) collectDue(now time.Time) ([]*job, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*job
	var nextAt time.Time
	hasNext := false
	for id, j := range s.jobs {
		if !j.fireAt.After(now) {
			due = append(due, j)
			delete(s.jobs, id)
			continue
		}
		if !hasNext || j.fireAt.Before(nextAt) {
			nextAt = j.fireAt
			hasNext = true
		}
	}
	return due, nextAt, hasNext
}

func (s *Scheduler) fire(j *job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", j.id).Interface("panic", r).Msg("scheduler: callback panicked, job dropped")
		}
	}()
	log.Info().Str("job_id", j.id).Msg("scheduler: firing job")
	j.fn(context.Background())
}
