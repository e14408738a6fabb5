package auth

import (
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter throttles failed logins per client IP and username.
// Once maxAttempts failures fall within the window the pair is blocked;
// each further failure doubles the block, up to maxBackoff.
type LoginRateLimiter struct {
	mu       sync.RWMutex
	attempts map[string]*attemptRecord

	maxAttempts int
	window      time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration

	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type attemptRecord struct {
	failures  int
	lastFail  time.Time
	blockedAt time.Time
}

// LimiterStats is a snapshot of the limiter state.
type LimiterStats struct {
	Tracked int
	Blocked int
}

// NewLoginRateLimiter starts a limiter and its sweeper goroutine. Stop must
// be called to release it.
func NewLoginRateLimiter(maxAttempts, windowSeconds int, baseBackoff, maxBackoff time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if windowSeconds <= 0 {
		windowSeconds = 300
	}
	if baseBackoff <= 0 {
		baseBackoff = time.Second
	}
	if maxBackoff < baseBackoff {
		maxBackoff = baseBackoff
	}
	rl := &LoginRateLimiter{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: maxAttempts,
		window:      time.Duration(windowSeconds) * time.Second,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Usernames are compared the way the login form does: trimmed, any case.
func (rl *LoginRateLimiter) key(ip, username string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(username))
}

// IsBlocked reports whether the pair is blocked and for how long still.
func (rl *LoginRateLimiter) IsBlocked(ip, username string) (bool, time.Duration) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	rec, ok := rl.attempts[rl.key(ip, username)]
	if !ok {
		return false, 0
	}
	until, blocked := rl.blockedUntil(rec)
	if !blocked {
		return false, 0
	}
	return true, until.Sub(rl.now())
}

func (rl *LoginRateLimiter) blockedUntil(rec *attemptRecord) (time.Time, bool) {
	if rec.blockedAt.IsZero() {
		return time.Time{}, false
	}
	until := rec.blockedAt.Add(rl.backoff(rec.failures))
	return until, rl.now().Before(until)
}

// RecordFailure counts a failed login and reports whether the pair is now
// blocked.
func (rl *LoginRateLimiter) RecordFailure(ip, username string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	k := rl.key(ip, username)
	rec, ok := rl.attempts[k]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[k] = rec
	}

	now := rl.now()
	if !rec.lastFail.IsZero() && now.Sub(rec.lastFail) > rl.window {
		*rec = attemptRecord{}
	}
	rec.failures++
	rec.lastFail = now
	if rec.failures >= rl.maxAttempts {
		rec.blockedAt = now
		return true
	}
	return false
}

// RecordSuccess forgets the failures of the pair.
func (rl *LoginRateLimiter) RecordSuccess(ip, username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, rl.key(ip, username))
}

// backoff is baseBackoff at the threshold, doubled per extra failure.
func (rl *LoginRateLimiter) backoff(failures int) time.Duration {
	extra := failures - rl.maxAttempts
	if extra <= 0 {
		return rl.baseBackoff
	}
	if extra > 30 {
		return rl.maxBackoff
	}
	d := rl.baseBackoff << extra
	if d <= 0 || d > rl.maxBackoff {
		return rl.maxBackoff
	}
	return d
}

func (rl *LoginRateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

// prune drops records idle for two windows that are no longer blocked.
func (rl *LoginRateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for k, rec := range rl.attempts {
		if _, blocked := rl.blockedUntil(rec); !blocked && now.Sub(rec.lastFail) > 2*rl.window {
			delete(rl.attempts, k)
		}
	}
}

// Stop ends the sweeper.
func (rl *LoginRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *LoginRateLimiter) Stats() LimiterStats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	st := LimiterStats{Tracked: len(rl.attempts)}
	for _, rec := range rl.attempts {
		if _, blocked := rl.blockedUntil(rec); blocked {
			st.Blocked++
		}
	}
	return st
}
