package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Mode selects whether the Scheduler runs a single pass or keeps ticking
// on its DriftCorrectedSchedule indefinitely.
type Mode string

const (
	ModeOnce       Mode = "once"
	ModeContinuous Mode = "continuous"
)

// MaxConsecutiveFailures is the default escalation threshold from §4.E: a
// tick-over-tick streak of this many pipeline failures triggers a terminal
// exit rather than another silent retry.
const MaxConsecutiveFailures = 5

// TerminalFailureError is returned by Run when consecutive pipeline
// failures reach MaxConsecutiveFailures; callers should treat this as
// fatal and exit non-zero.
type TerminalFailureError struct {
	ConsecutiveFailures int
	LastErr             error
}

func (e *TerminalFailureError) Error() string {
	return fmt.Sprintf("ingest: %d consecutive pipeline failures, last error: %v", e.ConsecutiveFailures, e.LastErr)
}

func (e *TerminalFailureError) Unwrap() error { return e.LastErr }

// Scheduler drives a Pipeline on a cron.Schedule, grounded on the
// teacher's scheduler pattern (cron.Cron wrapping structured per-tick
// logging) but registering a single DriftCorrectedSchedule directly via
// cron.Cron.Schedule, the extension point that accepts any cron.Schedule
// implementation instead of a parsed expression string.
type Scheduler struct {
	pipeline    *Pipeline
	schedule    cron.Schedule
	mode        Mode
	maxFailures int
	log         zerolog.Logger

	mu                  sync.Mutex
	consecutiveFailures int
	terminal            *TerminalFailureError
	terminalCh          chan struct{}
	terminalOnce        sync.Once
}

func NewScheduler(pipeline *Pipeline, schedule cron.Schedule, mode Mode, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		pipeline:    pipeline,
		schedule:    schedule,
		mode:        mode,
		maxFailures: MaxConsecutiveFailures,
		log:         log.With().Str("component", "ingest_scheduler").Logger(),
		terminalCh:  make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled (continuous mode), a single tick
// completes (once mode), or the consecutive-failure budget is exhausted.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.mode == ModeOnce {
		return s.pipeline.RunTick(ctx)
	}
	return s.runContinuous(ctx)
}

func (s *Scheduler) runContinuous(ctx context.Context) error {
	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if err := s.pipeline.RunTick(ctx); err != nil {
			s.recordFailure(err)
		} else {
			s.mu.Lock()
			s.consecutiveFailures = 0
			s.mu.Unlock()
		}
	}))

	c.Start()
	select {
	case <-ctx.Done():
	case <-s.terminalCh:
	}
	stopCtx := c.Stop()
	<-stopCtx.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal != nil {
		return s.terminal
	}
	return ctx.Err()
}

// recordFailure is invoked from within a cron job callback. Once the
// failure budget is exhausted it latches s.terminal and closes terminalCh,
// which wakes runContinuous immediately instead of waiting on ctx.Done.
func (s *Scheduler) recordFailure(err error) {
	s.mu.Lock()
	s.consecutiveFailures++
	count := s.consecutiveFailures
	s.log.Warn().
		Err(err).
		Int("consecutive_failures", count).
		Int("max_failures", s.maxFailures).
		Msg("ingestion tick failed")
	terminal := count >= s.maxFailures
	if terminal {
		s.terminal = &TerminalFailureError{ConsecutiveFailures: count, LastErr: err}
	}
	s.mu.Unlock()

	if terminal {
		s.terminalOnce.Do(func() { close(s.terminalCh) })
	}
}
