package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsConnectedBoundary(t *testing.T) {
	base := time.Unix(0, 0).Add(time.Hour)
	timeout := 5000 * time.Millisecond

	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{name: "fresh", age: 0, want: true},
		{name: "one_ms_before_timeout", age: 4999 * time.Millisecond, want: true},
		{name: "exactly_timeout", age: 5000 * time.Millisecond, want: false},
		{name: "past_timeout", age: 5001 * time.Millisecond, want: false},
		{name: "clock_behind_message", age: -time.Second, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := base.Add(tt.age)
			assert.Equal(t, tt.want, IsConnected(now, base, timeout))
		})
	}
}

func TestIsConnectedNeverSeen(t *testing.T) {
	assert.False(t, IsConnected(time.Now(), time.Time{}, time.Hour))
}

func TestNewTrackerDefaultsTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, NewTracker(0).Timeout)
	assert.Equal(t, time.Second, NewTracker(time.Second).Timeout)

	tr := NewTracker(time.Second)
	last := time.Now()
	assert.True(t, tr.IsConnected(last.Add(999*time.Millisecond), last))
	assert.False(t, tr.IsConnected(last.Add(time.Second), last))
}
