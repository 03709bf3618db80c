// Package scheduler refreshes the active location's weather in the background
// while the application is in the foreground.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-offline-sync/internal/location"
	"github.com/i474232898/weather-offline-sync/internal/weather"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultCallTimeout = 30 * time.Second
)

// State is the scheduler's lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Resolver is the part of the weather coordinator the scheduler drives.
type Resolver interface {
	Active() location.Identity
	Resolve(ctx context.Context, loc location.Identity) (weather.Current, error)
}

// Event describes one completed background refresh.
type Event struct {
	ID       uuid.UUID `json:"id"`
	Location string    `json:"location"`
	Offline  bool      `json:"offline"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives refresh events. Notify must not block.
type Notifier interface {
	Notify(Event)
}

type Options struct {
	Interval    time.Duration
	CallTimeout time.Duration
	Clock       clockwork.Clock
	Notifier    Notifier
	Logger      *log.Logger
}

// Scheduler runs at most one refresh loop at a time.
type Scheduler struct {
	resolver    Resolver
	notifier    Notifier
	clock       clockwork.Clock
	interval    time.Duration
	callTimeout time.Duration
	logger      *log.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

func New(resolver Resolver, opts Options) *Scheduler {
	s := &Scheduler{
		resolver:    resolver,
		notifier:    opts.Notifier,
		clock:       opts.Clock,
		interval:    opts.Interval,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.callTimeout <= 0 {
		s.callTimeout = DefaultCallTimeout
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// State reports whether a refresh loop is active.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins the refresh loop. The first refresh happens one interval
// later. Calling Start while running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = Running
	go s.loop(ctx)
	s.logger.Printf("INFO: background refresh started (every %s)", s.interval)
}

// Stop ends the loop. No resolve is started after Stop returns; one already in
// flight runs to completion and its result is dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return
	}
	s.cancel()
	s.cancel = nil
	s.state = Idle
	s.logger.Printf("INFO: background refresh stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		timer := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		if !s.tick(ctx) {
			return
		}
	}
}

type outcome struct {
	current weather.Current
	err     error
}

// tick reports false when the loop should exit.
func (s *Scheduler) tick(ctx context.Context) bool {
	loc := s.resolver.Active()
	if !loc.Valid() {
		s.logger.Printf("DEBUG: background refresh skipped: no location with coordinates")
		return true
	}

	// Checked under the lock so a resolve never begins after Stop returns.
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	results := make(chan outcome, 1)
	go func() {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
		defer cancel()
		cur, err := s.resolver.Resolve(callCtx, loc)
		results <- outcome{current: cur, err: err}
	}()
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		s.logger.Printf("DEBUG: background refresh for %s stopped mid-flight; result discarded", loc.Key())
		return false
	case r := <-results:
		s.report(loc, r)
		return true
	}
}

func (s *Scheduler) report(loc location.Identity, r outcome) {
	ev := Event{
		ID:       uuid.New(),
		Location: loc.Key(),
		Offline:  r.current.Offline,
		At:       s.clock.Now().UTC(),
	}
	switch {
	case r.err != nil:
		ev.Error = r.err.Error()
		s.logger.Printf("ERROR: background refresh for %s failed: %v", ev.Location, r.err)
	case r.current.Offline:
		s.logger.Printf("INFO: background refresh for %s served from cache: %v", ev.Location, r.current.FetchErr)
	default:
		s.logger.Printf("DEBUG: background refresh for %s succeeded", ev.Location)
	}

	if s.notifier != nil {
		s.notifier.Notify(ev)
	}
}
