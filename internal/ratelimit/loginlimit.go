package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a limiter check.
type Result struct {
	Allowed bool
	// RetryAfter is how long the caller must wait when denied.
	RetryAfter time.Duration
	// Limit is the configured attempt threshold.
	Limit int
}

// entry tracks failed attempts for a single client IP.
type entry struct {
	count       int
	windowStart time.Time
	lockedUntil time.Time
}

// LoginLimiter tracks failed authentication attempts per client IP inside a
// sliding window and locks the IP out once the threshold is crossed. The
// lockout applies regardless of credential correctness, so it must be
// checked before any password comparison runs.
//
// State is process-local and cannot fail; callers that swap in a
// store-backed implementation must deny on store errors (fail closed).
type LoginLimiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxAttempts int
	window      time.Duration
	now         func() time.Time // injectable clock for testing
}

// NewLoginLimiter creates a limiter allowing maxAttempts failed logins per
// IP per window.
func NewLoginLimiter(maxAttempts int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		entries:     make(map[string]*entry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Check reports whether an authentication attempt from ip may proceed.
// It does not count the attempt; only RecordFailure does.
func (l *LoginLimiter) Check(ip string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[ip]
	if !ok {
		return Result{Allowed: true, Limit: l.maxAttempts}
	}

	if now.Before(e.lockedUntil) {
		return Result{RetryAfter: e.lockedUntil.Sub(now), Limit: l.maxAttempts}
	}

	if now.Sub(e.windowStart) >= l.window {
		// Window elapsed without a lockout; drop the stale entry.
		delete(l.entries, ip)
		return Result{Allowed: true, Limit: l.maxAttempts}
	}

	if e.count >= l.maxAttempts {
		return Result{RetryAfter: e.windowStart.Add(l.window).Sub(now), Limit: l.maxAttempts}
	}

	return Result{Allowed: true, Limit: l.maxAttempts}
}

// RecordFailure counts one failed attempt for ip and reports whether this
// failure crossed the threshold and locked the IP. Crossing the threshold
// locks the IP for a full window from now. The increment happens under the
// limiter lock, so concurrent bursts cannot slip past the threshold.
func (l *LoginLimiter) RecordFailure(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[ip]
	if !ok || now.Sub(e.windowStart) >= l.window {
		e = &entry{windowStart: now}
		l.entries[ip] = e
	}

	e.count++
	if e.count == l.maxAttempts {
		e.lockedUntil = now.Add(l.window)
		return true
	}
	if e.count > l.maxAttempts {
		e.lockedUntil = now.Add(l.window)
	}
	return false
}

// Reset clears all state for ip. Called after a successful authentication:
// a prior run of failures does not outlive a correct login.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ip)
}
