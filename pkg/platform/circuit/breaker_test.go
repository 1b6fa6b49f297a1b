package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one recorded outcome and what the breaker should report for it.
type step struct {
	ok         bool
	wantOpen   bool
	wantChange StateChange
}

func TestBreakerSequences(t *testing.T) {
	fail := func(open bool, change StateChange) step { return step{ok: false, wantOpen: open, wantChange: change} }
	pass := func(open bool, change StateChange) step { return step{ok: true, wantOpen: open, wantChange: change} }
	none := StateChange{}
	opened := StateChange{Opened: true}
	closed := StateChange{Closed: true}

	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name:  "opens on the threshold failure",
			opts:  []Option{WithFailureThreshold(3)},
			steps: []step{fail(false, none), fail(false, none), fail(true, opened)},
		},
		{
			name: "a success in between restarts the failure count",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				fail(false, none), pass(false, none),
				fail(false, none), fail(true, opened),
			},
		},
		{
			name: "closes after consecutive successes while open",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				fail(true, opened),
				pass(true, none), pass(false, closed),
			},
		},
		{
			name: "a failure while open restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				fail(true, opened),
				pass(true, none), fail(true, none),
				pass(true, none), pass(false, closed),
			},
		},
		{
			name:  "defaults tolerate four failures",
			steps: []step{fail(false, none), fail(false, none), fail(false, none), fail(false, none), fail(true, opened)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("history-stream", tt.opts...)
			require.Equal(t, StateClosed, b.State())

			for i, s := range tt.steps {
				var change StateChange
				if s.ok {
					_, change = b.RecordSuccess()
				} else {
					_, change = b.RecordFailure()
				}
				assert.Equal(t, s.wantChange, change, "step %d", i)
				assert.Equal(t, s.wantOpen, b.IsOpen(), "step %d", i)
			}
		})
	}
}

func TestBreakerFallbackSignals(t *testing.T) {
	b := New("history-stream", WithFailureThreshold(1))

	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback)
	assert.Equal(t, "open", b.State().String())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback, "an open breaker keeps answering with the fallback")
	assert.Equal(t, StateChange{}, change)

	b.Reset()
	assert.False(t, b.IsOpen())
	usePrimary, _ := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.Equal(t, "history-stream", b.Name())
}

func TestBreakerAllow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	b := New("history-stream",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(clock),
	)

	require.True(t, b.Allow(), "closed breaker allows every call")
	b.RecordFailure()
	require.True(t, b.IsOpen())

	assert.False(t, b.Allow(), "open breaker rejects during cooldown")
	now = now.Add(59 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed lets one trial call through")
	assert.False(t, b.Allow(), "only one trial call in flight")

	b.RecordFailure()
	assert.False(t, b.Allow(), "failed trial restarts the cooldown")

	now = now.Add(time.Minute)
	require.True(t, b.Allow())
	_, change := b.RecordSuccess()
	assert.Equal(t, StateChange{}, change)
	require.True(t, b.Allow(), "next trial follows a successful one")
	_, change = b.RecordSuccess()
	assert.Equal(t, StateChange{Closed: true}, change)
	assert.True(t, b.Allow())
}
