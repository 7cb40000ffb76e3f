package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quickquiz/quickquiz/internal/apperr"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler() (*Scheduler, *FakeClock) {
	clock := NewFakeClock(testEpoch)
	s := New(clock)
	s.Start()
	return s, clock
}

func waitFired(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("fired %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job %q did not fire in time", want)
	}
}

func TestSchedulerFiresAtDeadline(t *testing.T) {
	s, clock := newTestScheduler()
	defer s.Stop()

	fired := make(chan string, 1)
	s.Schedule("activate:1", testEpoch.Add(10*time.Second), func(ctx context.Context) {
		fired <- "activate:1"
	})

	clock.BlockUntil(1)
	clock.Advance(9 * time.Second)
	select {
	case <-fired:
		t.Fatal("job fired before its deadline")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Second)
	waitFired(t, fired, "activate:1")

	if s.Pending("activate:1") {
		t.Error("fired job should be removed from the schedule")
	}
}

func TestScheduleReplacesSameID(t *testing.T) {
	s, clock := newTestScheduler()
	defer s.Stop()

	var firstFired, secondFired int32
	fired := make(chan string, 2)
	s.Schedule("complete:7", testEpoch.Add(10*time.Second), func(ctx context.Context) {
		atomic.AddInt32(&firstFired, 1)
		fired <- "first"
	})
	clock.BlockUntil(1)
	s.Schedule("complete:7", testEpoch.Add(20*time.Second), func(ctx context.Context) {
		atomic.AddInt32(&secondFired, 1)
		fired <- "second"
	})
	clock.BlockUntil(2)

	clock.Advance(25 * time.Second)
	waitFired(t, fired, "second")
	time.Sleep(100 * time.Millisecond)

	if n := atomic.LoadInt32(&firstFired); n != 0 {
		t.Errorf("replaced callback fired %d times, want 0", n)
	}
	if n := atomic.LoadInt32(&secondFired); n != 1 {
		t.Errorf("replacement callback fired %d times, want exactly 1", n)
	}
}

func TestRescheduleMovesFireTime(t *testing.T) {
	s, clock := newTestScheduler()
	defer s.Stop()

	fired := make(chan string, 1)
	s.Schedule("complete:3", testEpoch.Add(30*time.Minute), func(ctx context.Context) {
		fired <- "complete:3"
	})
	clock.BlockUntil(1)

	if err := s.Reschedule("complete:3", testEpoch.Add(5*time.Minute)); err != nil {
		t.Fatalf("reschedule of a pending job failed: %v", err)
	}
	clock.Advance(5 * time.Minute)
	waitFired(t, fired, "complete:3")
}

func TestRescheduleUnknownJob(t *testing.T) {
	s, _ := newTestScheduler()
	defer s.Stop()

	err := s.Reschedule("activate:999", testEpoch.Add(time.Minute))
	if !errors.Is(err, apperr.ErrJobNotFound) {
		t.Errorf("rescheduling an absent job: got %v, want ErrJobNotFound", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s, clock := newTestScheduler()
	defer s.Stop()

	var fires int32
	s.Schedule("activate:4", testEpoch.Add(10*time.Second), func(ctx context.Context) {
		atomic.AddInt32(&fires, 1)
	})
	clock.BlockUntil(1)

	s.Cancel("activate:4")
	s.Cancel("activate:4")   // second cancel is a no-op
	s.Cancel("never-existed") // so is canceling an unknown id

	clock.Advance(time.Minute)
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fires); n != 0 {
		t.Errorf("canceled job fired %d times", n)
	}
	if s.Pending("activate:4") {
		t.Error("canceled job still pending")
	}
}

// Concurrent reschedules against a running loop: the loop reads the pending
// fire time while writers move it around, so this fails under the race
// detector if the loop ever dereferences a job still in the map.
func TestConcurrentRescheduleIsSafe(t *testing.T) {
	s, clock := newTestScheduler()
	defer s.Stop()

	fired := make(chan string, 1)
	s.Schedule("complete:9", testEpoch.Add(time.Hour), func(ctx context.Context) {
		fired <- "complete:9"
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				at := testEpoch.Add(time.Hour + time.Duration(g*100+i)*time.Millisecond)
				_ = s.Reschedule("complete:9", at)
			}
		}(g)
	}
	wg.Wait()

	// The job survived the storm and still fires at its final deadline.
	if err := s.Reschedule("complete:9", testEpoch.Add(time.Minute)); err != nil {
		t.Fatalf("final reschedule: %v", err)
	}
	clock.Advance(time.Minute)
	waitFired(t, fired, "complete:9")
}

func TestPanickingCallbackIsDropped(t *testing.T) {
	s, clock := newTestScheduler()
	defer s.Stop()

	fired := make(chan string, 1)
	s.Schedule("bad", testEpoch.Add(time.Second), func(ctx context.Context) {
		panic("boom")
	})
	s.Schedule("good", testEpoch.Add(2*time.Second), func(ctx context.Context) {
		fired <- "good"
	})
	clock.BlockUntil(1)

	clock.Advance(time.Second)
	// Wait for the loop to survive the panic and park on the next job.
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	// The loop must survive the panic and still fire the later job.
	waitFired(t, fired, "good")
	if s.Pending("bad") {
		t.Error("panicked job should have been dropped, not retried")
	}
}
