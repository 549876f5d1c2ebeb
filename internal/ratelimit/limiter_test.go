package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Allow(t *testing.T) {
	l := New()
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	window := 10 * time.Second
	const max = 5

	for i := 0; i < max; i++ {
		assert.True(t, l.Allow(1, max, window), "request %d should pass", i)
	}
	assert.False(t, l.Allow(1, max, window), "request past the limit must be denied")

	// Another user is unaffected.
	assert.True(t, l.Allow(2, max, window))
}

func TestLimiter_WindowSlides(t *testing.T) {
	l := New()
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	window := 10 * time.Second

	assert.True(t, l.Allow(1, 2, window))
	current = current.Add(6 * time.Second)
	assert.True(t, l.Allow(1, 2, window))
	assert.False(t, l.Allow(1, 2, window))

	// The first stamp ages out; one slot frees up.
	current = current.Add(5 * time.Second)
	assert.True(t, l.Allow(1, 2, window))
	assert.False(t, l.Allow(1, 2, window))
}

func TestLimiter_NeverExceedsMaxInAnyWindow(t *testing.T) {
	l := New()
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	window := 10 * time.Second
	const max = 3

	var admitted []time.Time
	for i := 0; i < 200; i++ {
		if l.Allow(1, max, window) {
			admitted = append(admitted, current)
		}
		current = current.Add(500 * time.Millisecond)
	}

	for i := range admitted {
		count := 0
		for j := i; j < len(admitted); j++ {
			if admitted[j].Sub(admitted[i]) <= window {
				count++
			}
		}
		assert.LessOrEqual(t, count, max,
			"window starting at %v admitted too many", admitted[i])
	}
}

func TestLimiter_GC(t *testing.T) {
	l := New()
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	window := 10 * time.Second

	l.Allow(1, 5, window)
	l.Allow(2, 5, window)
	assert.Equal(t, 2, l.TrackedUsers())

	// Not yet past 2x window, nothing to evict.
	current = current.Add(15 * time.Second)
	assert.Equal(t, 0, l.GC(window))

	current = current.Add(10 * time.Second)
	assert.Equal(t, 2, l.GC(window))
	assert.Equal(t, 0, l.TrackedUsers())

	// Eviction does not change admission semantics.
	assert.True(t, l.Allow(1, 5, window))
}
