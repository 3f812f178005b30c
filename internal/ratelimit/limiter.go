// Package ratelimit implements the tiered token-bucket rate limiter from
// §4.B on top of golang.org/x/time/rate. x/time/rate only issues whole
// tokens, but the bulk-cancel operation costs a fractional 0.2 tokens; this
// package scales every nominal rate and cost by 5 internally (so 1.0 token
// becomes 5, 0.2 becomes 1) and only exposes whole-number costs externally.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Tier is a subscription tier; each has distinct read and write buckets.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierAdvanced Tier = "advanced"
	TierPremier  Tier = "premier"
	TierPrime    Tier = "prime"
)

// tokenScale converts the spec's fractional bulk-cancel cost (0.2) into an
// integer x/time/rate cost (1) without losing precision for normal 1.0-cost
// operations (which become 5).
const tokenScale = 5

// safetyMargin is applied to every nominal tier rate before constructing
// the underlying limiter.
const safetyMargin = 0.9

var tierRates = map[Tier]struct{ Read, Write float64 }{
	TierBasic:    {Read: 20, Write: 10},
	TierAdvanced: {Read: 30, Write: 30},
	TierPremier:  {Read: 100, Write: 100},
	TierPrime:    {Read: 400, Write: 400},
}

// Cost is the token cost of one rate-limited operation, expressed in the
// spec's native units (1.0 for a normal op, 0.2 for bulk-cancel).
type Cost float64

const (
	CostNormal     Cost = 1.0
	CostBulkCancel Cost = 0.2
)

func (c Cost) scaled() int {
	n := int(float64(c)*tokenScale + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// Limiter is a process-wide, shared rate limiter with one bucket per
// (tier is fixed at construction) logical direction: read and write.
type Limiter struct {
	read  *rate.Limiter
	write *rate.Limiter
	log   zerolog.Logger
}

// New builds a Limiter for the given tier. Bucket capacity equals one
// second of (safety-margined) tokens, scaled by tokenScale.
func New(tier Tier, log zerolog.Logger) *Limiter {
	rates, ok := tierRates[tier]
	if !ok {
		rates = tierRates[TierBasic]
	}
	readRPS := rates.Read * safetyMargin * tokenScale
	writeRPS := rates.Write * safetyMargin * tokenScale
	return &Limiter{
		read:  rate.NewLimiter(rate.Limit(readRPS), int(readRPS)),
		write: rate.NewLimiter(rate.Limit(writeRPS), int(writeRPS)),
		log:   log.With().Str("component", "ratelimit").Str("tier", string(tier)).Logger(),
	}
}

// WaitRead blocks until a read token of the given cost is available, or ctx
// is cancelled. Waits longer than 100ms are logged with duration and op.
func (l *Limiter) WaitRead(ctx context.Context, op string, cost Cost) error {
	return l.wait(ctx, l.read, op, cost)
}

// WaitWrite blocks until a write token of the given cost is available, or
// ctx is cancelled.
func (l *Limiter) WaitWrite(ctx context.Context, op string, cost Cost) error {
	return l.wait(ctx, l.write, op, cost)
}

func (l *Limiter) wait(ctx context.Context, lim *rate.Limiter, op string, cost Cost) error {
	start := time.Now()
	if err := lim.WaitN(ctx, cost.scaled()); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		l.log.Warn().
			Str("op", op).
			Dur("waited", waited).
			Msg("rate limiter wait exceeded 100ms")
	}
	return nil
}
