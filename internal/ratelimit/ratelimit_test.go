package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiterAllow(t *testing.T) {
	tests := []struct {
		name     string
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(1000, 0)
			limiter := New(1, tt.burst)
			limiter.now = func() time.Time { return now }

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if limiter.Allow("client") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiterKeysAreIndependent(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := New(1, 1)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("a"), "bucket refills")
}

func TestKeyedRateLimiterSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := New(1, 1)
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(10 * time.Minute)
	limiter.Allow("fresh")

	assert.Equal(t, 1, limiter.Sweep(5*time.Minute))
}
