package ingest

import "time"

// SystemClock is the real-time domain.Clock implementation cmd/marketedged
// wires into the snapshot stage; tests use fixedClock instead.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
