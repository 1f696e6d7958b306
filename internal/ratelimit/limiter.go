package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Limiter applies a per-user sliding window with temporary ban
// escalation. Each user's record carries its own mutex, so checks for
// different users never block each other; the outer lock only guards
// the map itself.
type Limiter struct {
	mu    sync.RWMutex
	users map[string]*userLimit

	maxMessages int
	window      time.Duration
	banDuration time.Duration

	now func() time.Time // test hook
}

type userLimit struct {
	mu         sync.Mutex
	timestamps []time.Time
	banned     bool
	banExpiry  time.Time
}

// Result reports the outcome of a Check.
type Result struct {
	Allowed     bool
	Reason      string
	Banned      bool
	BannedUntil time.Time
	Remaining   int
}

// New creates a limiter allowing maxMessages per window, escalating to a
// ban of banDuration on overflow.
func New(maxMessages int, window, banDuration time.Duration) *Limiter {
	return &Limiter{
		users:       make(map[string]*userLimit),
		maxMessages: maxMessages,
		window:      window,
		banDuration: banDuration,
		now:         time.Now,
	}
}

func (l *Limiter) record(userKey string) *userLimit {
	l.mu.RLock()
	rec, ok := l.users[userKey]
	l.mu.RUnlock()
	if ok {
		return rec
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok = l.users[userKey]; ok {
		return rec
	}
	rec = &userLimit{}
	l.users[userKey] = rec
	return rec
}

// Check admits or refuses one message for userKey. An active ban refuses
// outright; an expired ban is cleared together with the timestamp
// history; otherwise timestamps older than the window are pruned and the
// count compared against the limit. Overflow sets a fresh ban and clears
// the history so the user starts clean once it elapses.
func (l *Limiter) Check(userKey string) Result {
	rec := l.record(userKey)
	now := l.now()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.banned && now.Before(rec.banExpiry) {
		remaining := math.Ceil(rec.banExpiry.Sub(now).Seconds())
		return Result{
			Allowed:     false,
			Reason:      fmt.Sprintf("You are temporarily banned for %.0f seconds due to spam.", remaining),
			Banned:      true,
			BannedUntil: rec.banExpiry,
		}
	}

	if rec.banned {
		rec.banned = false
		rec.timestamps = rec.timestamps[:0]
	}

	// Prune entries outside the sliding window.
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if now.Sub(ts) <= l.window {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept

	if len(rec.timestamps) >= l.maxMessages {
		rec.banned = true
		rec.banExpiry = now.Add(l.banDuration)
		rec.timestamps = rec.timestamps[:0]
		return Result{
			Allowed:     false,
			Reason:      fmt.Sprintf("Rate limit exceeded! You have been temporarily banned for %.0f seconds.", l.banDuration.Seconds()),
			Banned:      true,
			BannedUntil: rec.banExpiry,
		}
	}

	rec.timestamps = append(rec.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: l.maxMessages - len(rec.timestamps),
	}
}

// Reset clears all state for a user. Used for administrative unban.
func (l *Limiter) Reset(userKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.users, userKey)
}

// Cleanup drops records that carry no live state: no active ban and no
// timestamp inside the window. Call periodically to bound memory.
func (l *Limiter) Cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for userKey, rec := range l.users {
		rec.mu.Lock()
		stale := !rec.banned || now.After(rec.banExpiry)
		if stale {
			for _, ts := range rec.timestamps {
				if now.Sub(ts) <= l.window {
					stale = false
					break
				}
			}
		}
		rec.mu.Unlock()
		if stale {
			delete(l.users, userKey)
		}
	}
}
