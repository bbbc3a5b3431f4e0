package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	failures     int
	lockouts     int
	lastFailure  time.Time
	blockedUntil time.Time
}

// FailureLimiter locks a client out after too many failed authentication
// attempts within a window. Each further lockout lasts longer, as given by
// the backoff.
type FailureLimiter struct {
	mu          sync.Mutex
	records     map[string]*record
	maxFailures int
	window      time.Duration
	backoff     *Backoff
	now         func() time.Time
}

func NewFailureLimiter(maxFailures int, window time.Duration, backoff *Backoff) *FailureLimiter {
	return &FailureLimiter{
		records:     make(map[string]*record),
		maxFailures: maxFailures,
		window:      window,
		backoff:     backoff,
		now:         time.Now,
	}
}

// Blocked reports whether the client is locked out and for how much longer.
func (l *FailureLimiter) Blocked(clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[clientID]
	if !ok {
		return false, 0
	}
	now := l.now()
	if now.Before(rec.blockedUntil) {
		return true, rec.blockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed attempt and returns the lockout it caused,
// or zero when the client may still retry.
func (l *FailureLimiter) RecordFailure(clientID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[clientID]
	if !ok {
		rec = &record{}
		l.records[clientID] = rec
	}

	if now.Sub(rec.lastFailure) > l.window {
		rec.failures = 0
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures < l.maxFailures {
		return 0
	}

	rec.failures = 0
	rec.lockouts++
	d := l.backoff.Duration(rec.lockouts)
	rec.blockedUntil = now.Add(d)
	return d
}

func (l *FailureLimiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, clientID)
}

// Run drops stale records until ctx is done.
func (l *FailureLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *FailureLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, rec := range l.records {
		if now.Sub(rec.lastFailure) > l.window*2 && now.After(rec.blockedUntil) {
			delete(l.records, id)
		}
	}
}

func (l *FailureLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
