package domain

import (
	"time"

	"github.com/aristath/marketedge/internal/money"
)

// PriceSnapshot is one row of the append-only (ticker, timestamp) time
// series. Readers must not assume monotonic per-ticker insertion order;
// the repository keeps one row per (ticker, timestamp) and orders reads by
// timestamp.
type PriceSnapshot struct {
	Ticker       string
	Timestamp    time.Time
	YesBid       money.Amount
	YesAsk       money.Amount
	Volume       int64
	OpenInterest int64
	Liquidity    *int64 // nil once a negative sentinel has been normalized
}

// Settlement is a terminal, immutable record created exactly once per
// ticker when the market resolves.
type Settlement struct {
	Ticker            string
	SettledAt         time.Time
	SettlementValue   int // 0 or 1
	ActualSettlement  time.Time
}

// Fill is an immutable trade attributed to the authenticated account,
// uniquely identified by FillID.
type Fill struct {
	FillID  string
	Ticker  string
	Side    Side
	Action  Action
	Count   int64
	Price   money.Amount
	Fees    money.Amount
	TradeTS time.Time
}
