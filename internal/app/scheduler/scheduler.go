// Package scheduler runs a job once at start-up and then daily at a fixed
// wall-clock time.
package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Defaults applied by New for zero options.
const (
	DefaultAt           = "10:00"
	DefaultPollInterval = time.Second
	DefaultCooldown     = 60 * time.Second
)

// Job is the work performed on every run.
type Job func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	At           string         // Daily run time, HH:MM
	Location     *time.Location // Zone At is interpreted in; local time when nil
	PollInterval time.Duration
	Cooldown     time.Duration // Wait after an unexpected failure
	// Expected reports errors that abort a run without a cooldown.
	Expected func(error) bool
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Scheduler is an explicit polling loop around a Job.
// At most one run is in progress at a time.
type Scheduler struct {
	job      Job
	hour     int
	minute   int
	loc      *time.Location
	poll     time.Duration
	cooldown time.Duration
	expected func(error) bool
	now      func() time.Time

	mu    sync.RWMutex
	phase Phase
	next  time.Time
}

// New creates a Scheduler.
func New(job Job, opts Options) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler job is nil")
	}
	if opts.At == "" {
		opts.At = DefaultAt
	}
	hour, minute, err := ParseAt(opts.At)
	if err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	if opts.Expected == nil {
		opts.Expected = func(error) bool { return false }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		job:      job,
		hour:     hour,
		minute:   minute,
		loc:      opts.Location,
		poll:     opts.PollInterval,
		cooldown: opts.Cooldown,
		expected: opts.Expected,
		now:      opts.Now,
		phase:    PhaseStopped,
	}, nil
}

// ParseAt parses a 24-hour "HH:MM" time of day.
func ParseAt(at string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(at), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, 0, errors.Newf("invalid time of day %q: want HH:MM", at)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Newf("invalid hour in %q", at)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Newf("invalid minute in %q", at)
	}
	return hour, minute, nil
}

// NextRun returns the next hour:minute occurrence strictly after now, in now's
// location: today's when it is still ahead, otherwise tomorrow's.
func NextRun(now time.Time, hour, minute int) time.Time {
	y, mo, d := now.Date()
	next := time.Date(y, mo, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, mo, d+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Next returns the time of the next scheduled run. Zero before Run starts.
func (s *Scheduler) Next() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// Run executes the job immediately, then daily until ctx is cancelled.
// Job failures never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setPhase(PhaseStopped)

	failed := s.execute(ctx)
	s.schedule()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		if failed {
			if !s.wait(ctx, s.cooldown) {
				break
			}
			failed = false
		}

		select {
		case <-ctx.Done():
			zlog.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
		}

		if s.now().Before(s.Next()) {
			continue
		}
		failed = s.execute(ctx)
		s.schedule()
	}

	zlog.Info().Msg("scheduler stopped")
	return nil
}

// execute runs the job once and reports whether a cooldown is due.
func (s *Scheduler) execute(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	s.setPhase(PhaseRunning)
	defer s.setPhase(PhaseIdle)

	err := s.safeRun(ctx)
	switch {
	case err == nil:
		return false
	case ctx.Err() != nil:
		zlog.Info().Msgf("run interrupted: %v", err)
		return false
	case s.expected(err):
		zlog.Warn().Msgf("run aborted: %v", err)
		return false
	default:
		zlog.Error().Msgf("run failed, cooling down for %s: %+v", s.cooldown, err)
		return true
	}
}

func (s *Scheduler) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in scheduled run: %v", r)
		}
	}()
	return s.job(ctx)
}

func (s *Scheduler) schedule() {
	next := NextRun(s.now().In(s.loc), s.hour, s.minute)

	s.mu.Lock()
	s.next = next
	s.mu.Unlock()

	zlog.Info().Msgf("next run scheduled: at=%s", next.Format(time.RFC3339))
}

// wait sleeps for d and reports false when ctx ends first.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Scheduler) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != p {
		zlog.Debug().Msgf("phase changed: phase=%s", p)
	}
	s.phase = p
}
