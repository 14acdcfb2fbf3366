package benchmark

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns the queued times in order, then ErrClockUnavailable.
type stepClock struct {
	times []time.Time
	fail  map[int]bool
	calls int
}

func (c *stepClock) Now() (time.Time, error) {
	i := c.calls
	c.calls++
	if c.fail[i] || i >= len(c.times) {
		return time.Time{}, ErrClockUnavailable
	}
	return c.times[i], nil
}

func TestRecorder_Measure(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &stepClock{times: []time.Time{base, base.Add(2500 * time.Millisecond)}}
	r := NewRecorder(clock, zerolog.Nop())

	ran := false
	elapsed, err := r.Measure("op", func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	require.NotNil(t, elapsed)
	assert.InDelta(t, 2.5, *elapsed, 1e-9)
}

func TestRecorder_PassesThroughError(t *testing.T) {
	base := time.Now()
	clock := &stepClock{times: []time.Time{base, base.Add(time.Second)}}
	r := NewRecorder(clock, zerolog.Nop())

	boom := errors.New("boom")
	elapsed, err := r.Measure("op", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, elapsed)
	assert.InDelta(t, 1.0, *elapsed, 1e-9)
}

func TestRecorder_ClockUnavailable(t *testing.T) {
	tests := []struct {
		name string
		fail map[int]bool
	}{
		{name: "at start", fail: map[int]bool{0: true}},
		{name: "at end", fail: map[int]bool{1: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := time.Now()
			clock := &stepClock{times: []time.Time{base, base.Add(time.Second)}, fail: tt.fail}
			r := NewRecorder(clock, zerolog.Nop())

			ran := false
			elapsed, err := r.Measure("op", func() error {
				ran = true
				return nil
			})
			assert.NoError(t, err, "clock failure must not abort the operation")
			assert.True(t, ran)
			assert.Nil(t, elapsed)
		})
	}
}

func TestRecorder_BackwardsClock(t *testing.T) {
	base := time.Now()
	clock := &stepClock{times: []time.Time{base, base.Add(-time.Second)}}
	r := NewRecorder(clock, zerolog.Nop())

	elapsed, err := r.Measure("op", func() error { return nil })
	assert.NoError(t, err)
	assert.Nil(t, elapsed)
}

func TestRecorder_SystemClock(t *testing.T) {
	r := NewRecorder(nil, zerolog.Nop())
	elapsed, err := r.Measure("op", func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, elapsed)
	assert.GreaterOrEqual(t, *elapsed, 0.005)
}
