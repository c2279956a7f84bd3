package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	assert.False(t, got.Before(before))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 1, 7, 17, 31, 29, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	later := start.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestFormatCreatedAt(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "2025-03-14 09:05:07", FormatCreatedAt(ts))
}
