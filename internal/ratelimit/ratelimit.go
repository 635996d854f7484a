// Package ratelimit implements a fixed-window request counter keyed by
// session id. State is single-process in-memory; multi-process deployments
// need an external shared counter in front of this one.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 16

// Decision reports the outcome of one admission check. RetryAfter is only
// meaningful when Allowed is false: it is the time until the current window
// rolls over.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type windowState struct {
	start time.Time
	count int
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*windowState
}

// Limiter admits up to capacity requests per session within each fixed
// window. Windows are anchored at the first request after rollover, not on
// wall-clock boundaries.
type Limiter struct {
	capacity int
	window   time.Duration
	now      func() time.Time
	shards   [shardCount]*shard
}

func New(capacity int, window time.Duration) *Limiter {
	l := &Limiter{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: map[string]*windowState{}}
	}
	return l
}

// Allow records one request for the session and reports whether it is within
// capacity. The count is monotonic within a window: rejected requests do not
// consume capacity, so the session recovers exactly at window rollover.
func (l *Limiter) Allow(sessionID string) Decision {
	s := l.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	state := s.windows[sessionID]
	if state == nil || now.Sub(state.start) >= l.window {
		state = &windowState{start: now}
		s.windows[sessionID] = state
	}

	reset := state.start.Add(l.window)
	if state.count >= l.capacity {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: reset.Sub(now),
		}
	}

	state.count++
	return Decision{
		Allowed:   true,
		Remaining: l.capacity - state.count,
		Reset:     reset,
	}
}

// Forget discards the session's window, for use when a session ends.
func (l *Limiter) Forget(sessionID string) {
	s := l.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, sessionID)
}

// Prune drops windows that rolled over at least one full window ago. Called
// periodically so idle sessions do not accumulate.
func (l *Limiter) Prune() int {
	now := l.now()
	pruned := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, state := range s.windows {
			if now.Sub(state.start) >= 2*l.window {
				delete(s.windows, id)
				pruned++
			}
		}
		s.mu.Unlock()
	}
	return pruned
}

func (l *Limiter) shardFor(sessionID string) *shard {
	return l.shards[xxhash.Sum64String(sessionID)%shardCount]
}
