package weather

import (
	"fmt"
	"sync"
	"time"
)

// Status is the coordinator's view of how current its data is.
type Status struct {
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess"`
	LastError           error     `json:"-"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	ServedFromCache     bool      `json:"servedFromCache"`
}

// IsOffline reports whether the most recent resolve could not reach the gateway.
func (s Status) IsOffline() bool {
	return s.ConsecutiveFailures > 0
}

// Stale reports whether the last live fetch is older than maxAge (or never happened).
func (s Status) Stale(now time.Time, maxAge time.Duration) bool {
	if s.LastSuccess.IsZero() {
		return true
	}
	return now.Sub(s.LastSuccess) > maxAge
}

type statusTracker struct {
	mu     sync.RWMutex
	status Status
}

func (t *statusTracker) success() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.status.LastAttempt = now
	t.status.LastSuccess = now
	t.status.LastError = nil
	t.status.ConsecutiveFailures = 0
	t.status.ServedFromCache = false
}

func (t *statusTracker) failure(err error, servedFromCache bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.LastAttempt = time.Now()
	t.status.LastError = err
	t.status.ConsecutiveFailures++
	t.status.ServedFromCache = servedFromCache
}

func (t *statusTracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.status
	if t.status.LastError != nil {
		s.LastError = fmt.Errorf("%w", t.status.LastError)
	}
	return s
}
