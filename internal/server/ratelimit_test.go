package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, rl.Allow("a", t0))
	assert.Nil(t, rl.Allow("a", t0.Add(time.Second)))
	err := rl.Allow("a", t0.Add(10*time.Second))
	require.NotNil(t, err)
	assert.Equal(t, 2, err.Limit)
	assert.Equal(t, 50*time.Second, err.RetryAfter)
	assert.Contains(t, err.Error(), "rate limit exceeded")

	// other clients have their own budget
	assert.Nil(t, rl.Allow("b", t0.Add(10*time.Second)))

	// a new window resets the count
	assert.Nil(t, rl.Allow("a", t0.Add(time.Minute)))
}

func TestRateLimiter_EvictsExpired(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	t0 := time.Now()
	for i := range 1100 {
		rl.Allow(string(rune('a'+i%26))+time.Duration(i).String(), t0)
	}
	rl.Allow("late", t0.Add(2*time.Second))
	assert.Len(t, rl.clients, 1)
}
