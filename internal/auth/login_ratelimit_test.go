package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, maxAttempts int, base, max time.Duration) (*LoginRateLimiter, *fakeClock) {
	t.Helper()
	rl := NewLoginRateLimiter(maxAttempts, 60, base, max)
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestLoginRateLimiterBlocksAtThreshold(t *testing.T) {
	rl, clock := newTestLimiter(t, 3, time.Second, 10*time.Second)
	const ip, user = "10.0.0.7", "marie"

	blocked, _ := rl.IsBlocked(ip, user)
	assert.False(t, blocked)

	assert.False(t, rl.RecordFailure(ip, user))
	assert.False(t, rl.RecordFailure(ip, user))
	blocked, _ = rl.IsBlocked(ip, user)
	assert.False(t, blocked)

	assert.True(t, rl.RecordFailure(ip, user))
	blocked, wait := rl.IsBlocked(ip, user)
	require.True(t, blocked)
	assert.Equal(t, time.Second, wait)

	clock.advance(1500 * time.Millisecond)
	blocked, _ = rl.IsBlocked(ip, user)
	assert.False(t, blocked, "block expires after the backoff")
}

func TestLoginRateLimiterKeys(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Second, 10*time.Second)
	rl.RecordFailure("10.0.0.1", "Marie")
	rl.RecordFailure("10.0.0.1", " marie ")

	tests := []struct {
		name    string
		ip      string
		user    string
		blocked bool
	}{
		{"same pair any case", "10.0.0.1", "MARIE", true},
		{"other user", "10.0.0.1", "paul", false},
		{"other ip", "10.0.0.2", "marie", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, _ := rl.IsBlocked(tt.ip, tt.user)
			assert.Equal(t, tt.blocked, blocked)
		})
	}
}

func TestLoginRateLimiterSuccessClears(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Second, 10*time.Second)
	rl.RecordFailure("10.0.0.1", "marie")
	rl.RecordFailure("10.0.0.1", "marie")
	rl.RecordSuccess("10.0.0.1", "marie")

	rl.RecordFailure("10.0.0.1", "marie")
	rl.RecordFailure("10.0.0.1", "marie")
	blocked, _ := rl.IsBlocked("10.0.0.1", "marie")
	assert.False(t, blocked)
}

func TestLoginRateLimiterWindowResets(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Second, 10*time.Second)
	rl.RecordFailure("10.0.0.1", "marie")
	clock.advance(2 * time.Minute)
	assert.False(t, rl.RecordFailure("10.0.0.1", "marie"), "old failures fall out of the window")
}

func TestLoginRateLimiterBackoff(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Second, 5*time.Second)
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second},
		{100, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rl.backoff(tt.failures), "failures=%d", tt.failures)
	}
}

func TestLoginRateLimiterStatsAndPrune(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Second, 10*time.Second)
	rl.RecordFailure("10.0.0.1", "marie")
	rl.RecordFailure("10.0.0.1", "marie")
	rl.RecordFailure("10.0.0.2", "paul")

	assert.Equal(t, LimiterStats{Tracked: 2, Blocked: 1}, rl.Stats())

	clock.advance(3 * time.Minute)
	rl.prune()
	assert.Equal(t, LimiterStats{}, rl.Stats())
}
