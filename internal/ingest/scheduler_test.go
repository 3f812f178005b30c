package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastSchedule fires on every poll, so a cron.Cron registered with it ticks
// as quickly as the cron library's own minimum resolution allows.
type fastSchedule struct{}

func (fastSchedule) Next(t time.Time) time.Time { return t.Add(time.Millisecond) }

func TestRunContinuousEscalatesToTerminalExitWithoutExternalCancellation(t *testing.T) {
	failingStage := stageFunc{name: StageSyncMarkets, fn: func(ctx context.Context) error {
		return errors.New("upstream unavailable")
	}}
	pipeline := NewPipeline(zerolog.Nop(), failingStage)
	sched := NewScheduler(pipeline, fastSchedule{}, ModeContinuous, zerolog.Nop())

	// ctx is never cancelled: the only way Run can return is the terminal
	// escalation path, exercising exactly the bug the review flagged.
	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	select {
	case err := <-done:
		var terminal *TerminalFailureError
		require.ErrorAs(t, err, &terminal)
		assert.Equal(t, MaxConsecutiveFailures, terminal.ConsecutiveFailures)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not escalate to a terminal exit within 5s")
	}
}

func TestRunContinuousResetsFailureCountOnSuccess(t *testing.T) {
	calls := 0
	flaky := stageFunc{name: StageSyncMarkets, fn: func(ctx context.Context) error {
		calls++
		if calls%2 == 1 {
			return errors.New("transient")
		}
		return nil
	}}
	pipeline := NewPipeline(zerolog.Nop(), flaky)
	sched := NewScheduler(pipeline, fastSchedule{}, ModeContinuous, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := sched.Run(ctx)

	// Failures alternate with successes, so the consecutive-failure budget
	// never latches: Run should return ctx.Err(), not a terminal error.
	require.Error(t, err)
	var terminal *TerminalFailureError
	require.False(t, errors.As(err, &terminal))
}

var _ cron.Schedule = fastSchedule{}
