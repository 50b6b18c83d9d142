package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalTimeStartsWithJitter(t *testing.T) {
	clock := newSessionClock()
	got := clock.localTime()
	assert.GreaterOrEqual(t, got, int64(4))
	assert.LessOrEqual(t, got, int64(6))
}

func TestLocalTimeMonotonic(t *testing.T) {
	clock := sessionClock{baseline: time.Now().Add(-5 * time.Second)}
	first := clock.localTime()
	second := clock.localTime()
	assert.GreaterOrEqual(t, second, first)
}

func TestExpirationAnchor(t *testing.T) {
	cases := []struct {
		name   string
		server time.Time
		want   time.Time
	}{
		{
			name:   "early in the minute rounds to the next",
			server: time.Date(2022, 7, 29, 12, 0, 10, 0, time.UTC),
			want:   time.Date(2022, 7, 29, 12, 1, 0, 0, time.UTC),
		},
		{
			name:   "past second 30 skips a minute",
			server: time.Date(2022, 7, 29, 12, 0, 45, 0, time.UTC),
			want:   time.Date(2022, 7, 29, 12, 2, 0, 0, time.UTC),
		},
		{
			name:   "second 30 exactly still rounds to the next",
			server: time.Date(2022, 7, 29, 12, 0, 30, 0, time.UTC),
			want:   time.Date(2022, 7, 29, 12, 1, 0, 0, time.UTC),
		},
		{
			name:   "on the boundary",
			server: time.Date(2022, 7, 29, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2022, 7, 29, 12, 1, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want.Unix(), expirationAnchor(tc.server))
		})
	}
}

func TestResolveExpiration(t *testing.T) {
	anchor := time.Date(2022, 7, 29, 12, 1, 0, 0, time.UTC).Unix()

	// 1 minute means the anchor itself, each extra minute adds 60s.
	assert.Equal(t, anchor, resolveExpiration(anchor, 1))
	assert.Equal(t, anchor+60, resolveExpiration(anchor, 2))
	assert.Equal(t, anchor+4*60, resolveExpiration(anchor, 5))

	// Absolute epoch values pass through.
	abs := time.Date(2022, 7, 29, 15, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, abs, resolveExpiration(anchor, abs))
}

func TestRandomRequestIDShape(t *testing.T) {
	id := randomRequestID()
	assert.Regexp(t, `^\d+_\d{9}$`, id)
}
