package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsBurst(t *testing.T) {
	l := New(Config{Rate: 10, Per: time.Second, Burst: 5})
	for i := 0; i < 5; i++ {
		require.True(t, l.Acquire(1))
	}
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := New(Config{Rate: 10, Per: time.Second, Burst: 2})
	start := time.Now()
	l.now = func() time.Time { return start }
	require.True(t, l.Acquire(2))

	l.now = func() time.Time { return start.Add(500 * time.Millisecond) }
	assert.True(t, l.Acquire(2)) // 5 tokens refilled in 0.5s at rate 10/s
}

func TestLimiter_SleepsWithinFiveSeconds(t *testing.T) {
	l := New(Config{Rate: 1, Per: time.Second, Burst: 1})
	start := time.Now()
	l.now = func() time.Time { return start }
	require.True(t, l.Acquire(1)) // drains the bucket

	var slept time.Duration
	l.sleep = func(d time.Duration) { slept = d }
	l.now = func() time.Time { return start }
	ok := l.Acquire(3) // deficit 3 tokens at 1/s = 3s wait, within 5s
	assert.True(t, ok)
	assert.InDelta(t, 3*time.Second, slept, float64(50*time.Millisecond))
}

func TestLimiter_FailsBeyondFiveSeconds(t *testing.T) {
	l := New(Config{Rate: 1, Per: time.Second, Burst: 1})
	start := time.Now()
	l.now = func() time.Time { return start }
	require.True(t, l.Acquire(1))

	l.now = func() time.Time { return start }
	ok := l.Acquire(10) // deficit 10s wait, exceeds 5s cap
	assert.False(t, ok)
}

func TestRegistry_UsesTierDefaultsAndFallsBackToFree(t *testing.T) {
	reg := NewRegistry(DefaultTierConfigs(), func(userID string) string {
		if userID == "vip" {
			return TierEnterprise
		}
		return "unknown-tier"
	})
	vip := reg.Get("vip")
	other := reg.Get("someone")
	assert.NotNil(t, vip)
	assert.NotNil(t, other)
	assert.Same(t, vip, reg.Get("vip"))
}
