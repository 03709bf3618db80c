package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

const testInterval = 5 * time.Minute

type fakeResolver struct {
	mu      sync.Mutex
	active  location.Identity
	current weather.Current
	err     error
	calls   int32

	// When set, Resolve signals started and waits for release.
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (f *fakeResolver) Active() location.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeResolver) setActive(loc location.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = loc
}

func (f *fakeResolver) Resolve(ctx context.Context, _ location.Identity) (weather.Current, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
		f.ctxErr <- ctx.Err()
	}
	return f.current, f.err
}

func (f *fakeResolver) count() int32 {
	return atomic.LoadInt32(&f.calls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) snapshot() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func validLocation() location.Identity {
	return location.New("Gdańsk", "", "PL", 54.35, 18.65)
}

func newTestScheduler(r Resolver, n Notifier) (*Scheduler, clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	s := New(r, Options{
		Interval: testInterval,
		Clock:    fc,
		Notifier: n,
		Logger:   log.New(io.Discard, "", 0),
	})
	return s, fc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFirstRefreshWaitsOneInterval(t *testing.T) {
	r := &fakeResolver{active: validLocation()}
	s, fc := newTestScheduler(r, nil)

	s.Start()
	defer s.Stop()
	if s.State() != Running {
		t.Fatalf("expected running state")
	}

	fc.BlockUntil(1)
	fc.Advance(testInterval - time.Second)
	time.Sleep(10 * time.Millisecond)
	if r.count() != 0 {
		t.Fatalf("expected no refresh before the first interval, got %d", r.count())
	}

	fc.Advance(time.Second)
	waitFor(t, func() bool { return r.count() == 1 })
}

func TestStartIsIdempotent(t *testing.T) {
	r := &fakeResolver{active: validLocation()}
	s, fc := newTestScheduler(r, nil)

	s.Start()
	s.Start()
	defer s.Stop()

	for i := 1; i <= 2; i++ {
		fc.BlockUntil(1)
		fc.Advance(testInterval)
		waitFor(t, func() bool { return r.count() >= int32(i) })
	}
	fc.BlockUntil(1)
	if got := r.count(); got != 2 {
		t.Fatalf("expected exactly 2 refreshes over 2 intervals, got %d", got)
	}
}

func TestStopPreventsFurtherRefreshes(t *testing.T) {
	r := &fakeResolver{active: validLocation()}
	s, fc := newTestScheduler(r, nil)

	s.Start()
	fc.BlockUntil(1)
	fc.Advance(testInterval)
	waitFor(t, func() bool { return r.count() == 1 })
	fc.BlockUntil(1)

	s.Stop()
	if s.State() != Idle {
		t.Fatalf("expected idle state after stop")
	}
	s.Stop()

	fc.Advance(10 * testInterval)
	time.Sleep(20 * time.Millisecond)
	if got := r.count(); got != 1 {
		t.Fatalf("expected no refresh after stop, got %d calls", got)
	}
}

func TestRestartCreatesFreshLoop(t *testing.T) {
	r := &fakeResolver{active: validLocation()}
	s, fc := newTestScheduler(r, nil)

	s.Start()
	fc.BlockUntil(1)
	s.Stop()
	fc.BlockUntil(0)

	s.Start()
	defer s.Stop()
	fc.BlockUntil(1)
	fc.Advance(testInterval)
	waitFor(t, func() bool { return r.count() == 1 })
}

func TestInvalidLocationSkipsTick(t *testing.T) {
	r := &fakeResolver{}
	n := &recordingNotifier{}
	s, fc := newTestScheduler(r, n)

	s.Start()
	defer s.Stop()

	fc.BlockUntil(1)
	fc.Advance(testInterval)
	fc.BlockUntil(1)
	if r.count() != 0 || len(n.snapshot()) != 0 {
		t.Fatalf("expected skipped tick, got %d calls", r.count())
	}

	r.setActive(validLocation())
	fc.Advance(testInterval)
	waitFor(t, func() bool { return r.count() == 1 })
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	r := &fakeResolver{
		active:  validLocation(),
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	n := &recordingNotifier{}
	s, fc := newTestScheduler(r, n)

	s.Start()
	fc.BlockUntil(1)
	fc.Advance(testInterval)
	<-r.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Stop waited for the in-flight refresh")
	}

	close(r.release)
	if err := <-r.ctxErr; err != nil {
		t.Fatalf("in-flight call should keep its context after stop, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := n.snapshot(); len(got) != 0 {
		t.Fatalf("expected discarded result, got events %+v", got)
	}
}

func TestNotifierReceivesEvents(t *testing.T) {
	r := &fakeResolver{
		active:  validLocation(),
		current: weather.Current{Offline: true, FetchErr: errors.New("offline")},
	}
	n := &recordingNotifier{}
	s, fc := newTestScheduler(r, n)

	s.Start()
	defer s.Stop()
	fc.BlockUntil(1)
	fc.Advance(testInterval)
	waitFor(t, func() bool { return len(n.snapshot()) == 1 })

	ev := n.snapshot()[0]
	if ev.ID == uuid.Nil || !ev.Offline || ev.Error != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Location != validLocation().Key() {
		t.Fatalf("unexpected event location %q", ev.Location)
	}
	if !ev.At.Equal(fc.Now().UTC()) {
		t.Fatalf("expected event time from the clock, got %v", ev.At)
	}
}
