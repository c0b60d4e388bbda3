package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiters(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newClientLimiters(1, 1)
	s.now = func() time.Time { return now }
	s.lastCleanup = now

	allowed, err := s.Allow("10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, _ = s.Allow("10.0.0.1")
	assert.False(t, allowed, "burst of one is spent")

	allowed, _ = s.Allow("10.0.0.2")
	assert.True(t, allowed, "clients are limited independently")

	now = now.Add(time.Second)
	allowed, _ = s.Allow("10.0.0.1")
	assert.True(t, allowed, "token refilled")

	now = now.Add(2 * time.Hour)
	_, _ = s.Allow("10.0.0.3")
	assert.Len(t, s.limiters, 1, "stale limiters dropped")
}

func TestNewClientLimiters_MinimumBurst(t *testing.T) {
	assert.Equal(t, 1, newClientLimiters(5, 0).burst)
}
