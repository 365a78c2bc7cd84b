package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidInterval is returned by New for a non-positive interval.
var ErrInvalidInterval = errors.New("scheduler interval must be positive")

// TickFunc is invoked once per interval. Ticks never overlap.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// RunOnStart fires the first tick immediately instead of one interval after start.
	RunOnStart bool
	// TickTimeout bounds each tick's context; zero means the interval.
	TickTimeout time.Duration
}

// Scheduler drives sequential execution of the poll cycle.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = opts.Interval
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}, nil
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration { return s.opts.Interval }

// Run blocks, invoking tick at each interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.logger.Info().Dur("interval", s.opts.Interval).Bool("run_on_start", s.opts.RunOnStart).Msg("scheduler started")

	if s.opts.RunOnStart {
		s.execute(ctx, tick, time.Now().UTC())
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			s.logger.Warn().Time("missed", next).Msg("tick overran interval; skipping to next slot")
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.execute(ctx, tick, s.slotStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, at time.Time) {
	if ctx.Err() != nil {
		return
	}
	tickCtx, cancel := context.WithTimeout(ctx, s.opts.TickTimeout)
	defer cancel()

	s.logger.Debug().Time("tick", at).Msg("executing scheduled tick")
	if err := tick(tickCtx, at); err != nil {
		s.logger.Error().Err(err).Time("tick", at).Msg("tick execution failed")
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	slot := now.Truncate(s.opts.Interval)
	if !slot.After(now) {
		slot = slot.Add(s.opts.Interval)
	}
	return slot
}

func (s *Scheduler) slotStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
