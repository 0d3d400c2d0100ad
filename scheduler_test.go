package packsync

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a Clock moved by tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerOrdering(t *testing.T) {
	clock := newManualClock()
	s := newScheduler(clock, discardLogger())

	var got []int
	s.Schedule(3*time.Second, func() { got = append(got, 3) })
	s.Schedule(1*time.Second, func() { got = append(got, 1) })
	s.Schedule(2*time.Second, func() { got = append(got, 2) })
	assert.Equal(t, 3, s.Pending())

	s.tick(clock.Now())
	assert.Empty(t, got)

	clock.Advance(2 * time.Second)
	s.tick(clock.Now())
	assert.Equal(t, []int{1, 2}, got)

	clock.Advance(time.Hour)
	s.tick(clock.Now())
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Zero(t, s.Pending())
}

func TestSchedulerCancel(t *testing.T) {
	clock := newManualClock()
	s := newScheduler(clock, discardLogger())

	ran := false
	h := s.Schedule(time.Second, func() { ran = true })
	assert.False(t, h.Cancelled())
	h.Cancel()
	assert.True(t, h.Cancelled())

	clock.Advance(2 * time.Second)
	s.tick(clock.Now())
	assert.False(t, ran)

	var nilHandle *TaskHandle
	nilHandle.Cancel()
	assert.True(t, nilHandle.Cancelled())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	clock := newManualClock()
	s := newScheduler(clock, discardLogger())

	ran := false
	s.Schedule(0, func() { panic("boom") })
	s.Schedule(0, func() { ran = true })

	require.NotPanics(t, func() { s.tick(clock.Now()) })
	assert.True(t, ran)
}

func TestSchedulerCompaction(t *testing.T) {
	clock := newManualClock()
	s := newScheduler(clock, discardLogger())

	for i := 0; i < 300; i++ {
		s.Schedule(time.Minute, func() {}).Cancel()
	}
	assert.Less(t, s.Pending(), 300)
}

func TestSchedulerStartStop(t *testing.T) {
	s := newScheduler(systemClock{}, discardLogger())
	s.Start()
	s.Start()

	var count atomic.Int32
	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() {
		count.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	pending := s.Schedule(time.Hour, func() { count.Add(1) })
	s.Stop()
	s.Stop()
	assert.True(t, pending.Cancelled(), "stop drops pending tasks")
	assert.Equal(t, int32(1), count.Load())
}
