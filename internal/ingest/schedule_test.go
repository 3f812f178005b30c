package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDriftCorrectedScheduleFiresAtStartPlusKPeriod(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := NewDriftCorrectedSchedule(start, 5*time.Minute)

	assert.Equal(t, start, sched.Next(start.Add(-time.Minute)))
	assert.Equal(t, start.Add(5*time.Minute), sched.Next(start))
	assert.Equal(t, start.Add(10*time.Minute), sched.Next(start.Add(5*time.Minute)))
}

func TestDriftCorrectedScheduleSkipsMissedTicksRatherThanCatchingUp(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := NewDriftCorrectedSchedule(start, time.Minute)

	// A tick that runs for 7m30s past start should resume at start+8m, not
	// fire the 7 ticks it missed in between.
	late := start.Add(7*time.Minute + 30*time.Second)
	assert.Equal(t, start.Add(8*time.Minute), sched.Next(late))
}
