package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var errExpected = errors.New("expected failure")

func start(t *testing.T, job Job, clock *fakeClock, cooldown time.Duration) (*Scheduler, context.CancelFunc, <-chan error) {
	t.Helper()
	s, err := New(job, Options{
		At:           "10:00",
		Location:     time.UTC,
		PollInterval: time.Millisecond,
		Cooldown:     cooldown,
		Expected:     func(err error) bool { return errors.Is(err, errExpected) },
		Now:          clock.Now,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return s, cancel, done
}

func TestParseAt(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{in: "10:00", hour: 10, minute: 0},
		{in: "00:00", hour: 0, minute: 0},
		{in: "23:59", hour: 23, minute: 59},
		{in: "7:05", hour: 7, minute: 5},
		{in: " 08:30 ", hour: 8, minute: 30},
		{in: "24:00", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10", wantErr: true},
		{in: "10:0", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseAt(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2024, 5, 1, 9, 59, 59, 0, time.UTC),
			want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at run time goes to tomorrow",
			now:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "within the run minute goes to tomorrow",
			now:  time.Date(2024, 5, 1, 10, 0, 30, 0, time.UTC),
			want: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "end of month",
			now:  time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "end of year",
			now:  time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRun(tt.now, 10, 0))
		})
	}
}

func TestNextRun_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	// clocks go forward on 2024-03-10
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	next := NextRun(now, 10, 0)

	assert.Equal(t, 10, next.Hour())
	assert.Equal(t, 10, next.Day())
	assert.Equal(t, 23*time.Hour-2*time.Hour, next.Sub(now))
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(func(context.Context) error { return nil }, Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, s.hour)
	assert.Equal(t, 0, s.minute)
	assert.Equal(t, DefaultPollInterval, s.poll)
	assert.Equal(t, PhaseStopped, s.Phase())

	_, err = New(nil, Options{})
	assert.Error(t, err)

	_, err = New(func(context.Context) error { return nil }, Options{At: "25:00"})
	assert.Error(t, err)
}

func TestRun_StartupAndDaily(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	var runs atomic.Int32
	s, cancel, done := start(t, func(context.Context) error {
		runs.Add(1)
		return nil
	}, clock, 0)

	require.Eventually(t, func() bool { return runs.Load() == 1 && !s.Next().IsZero() }, time.Second, time.Millisecond)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), s.Next())

	// not yet due
	clock.Set(time.Date(2024, 5, 1, 9, 59, 0, 0, time.UTC))
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())

	clock.Set(time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return s.Next().Equal(time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC))
	}, time.Second, time.Millisecond)
	assert.Equal(t, PhaseIdle, s.Phase())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, PhaseStopped, s.Phase())
}

func TestRun_ContinuesAfterFailures(t *testing.T) {
	tests := []struct {
		name string
		fail func() error
	}{
		{name: "expected error", fail: func() error { return errExpected }},
		{name: "unexpected error", fail: func() error { return errors.New("boom") }},
		{name: "panic", fail: func() error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
			var runs atomic.Int32
			s, _, _ := start(t, func(context.Context) error {
				if runs.Add(1) == 1 {
					return tt.fail()
				}
				return nil
			}, clock, time.Millisecond)

			require.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, time.Millisecond)
			clock.Set(time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC))
			require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
		})
	}
}

func TestRun_CooldownOnlyForUnexpected(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		runsBefore bool
	}{
		{name: "expected error polls immediately", err: errExpected, runsBefore: true},
		{name: "unexpected error waits cooldown", err: errors.New("boom"), runsBefore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// already past today's slot, so the next run is tomorrow
			clock := &fakeClock{t: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)}
			var runs atomic.Int32
			s, _, _ := start(t, func(context.Context) error {
				runs.Add(1)
				return tt.err
			}, clock, time.Hour)

			require.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, time.Millisecond)
			clock.Set(time.Date(2024, 5, 2, 10, 0, 1, 0, time.UTC))

			if tt.runsBefore {
				require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
			} else {
				time.Sleep(50 * time.Millisecond)
				assert.EqualValues(t, 1, runs.Load())
			}
		})
	}
}

func TestRun_CancelDuringRun(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	started := make(chan struct{})
	s, cancel, done := start(t, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, clock, time.Hour)

	<-started
	assert.Equal(t, PhaseRunning, s.Phase())
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, PhaseStopped, s.Phase())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "stopped", PhaseStopped.String())
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "running", PhaseRunning.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
