package domain

import (
	"time"

	"github.com/aristath/marketedge/internal/money"
)

// MarketStatus is the lifecycle state of a Market.
type MarketStatus string

const (
	MarketStatusUnopened MarketStatus = "unopened"
	MarketStatusOpen     MarketStatus = "open"
	MarketStatusPaused   MarketStatus = "paused"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusSettled  MarketStatus = "settled"
)

// IsTrading reports whether orders may be placed against a market in this
// status. Used by the Orchestrator's fail-fast load step.
func (s MarketStatus) IsTrading() bool {
	return s == MarketStatusOpen || s == MarketStatusPaused
}

// Market is a frozen value object produced by the Wire Model Layer. Fields
// are never mutated after construction; a fresh snapshot replaces stale data.
type Market struct {
	Ticker       string
	EventTicker  string
	SeriesTicker string
	Title        string
	Status       MarketStatus
	YesBid       money.Amount
	YesAsk       money.Amount
	Volume24h    int64
	OpenInterest int64
	Liquidity    *int64 // nil when upstream sent the negative sentinel
	Multivariate bool
	CreatedTime  time.Time
	OpenTime     time.Time
	CloseTime    time.Time
	SettledTime  *time.Time
}

// NoBid and NoAsk are derived, never stored: the orderbook only carries bids.
func (m Market) NoBid() money.Amount {
	return money.Amount(int64(money.UnitsPerDollar) - int64(m.YesAsk))
}

func (m Market) NoAsk() money.Amount {
	return money.Amount(int64(money.UnitsPerDollar) - int64(m.YesBid))
}

// Midpoint returns the YES midpoint in dollars, used throughout the
// liquidity engine and scanner ranking formulas.
func (m Market) Midpoint() float64 {
	return (m.YesBid.Cents() + m.YesAsk.Cents()) / 2 / 100
}

// SpreadCents returns the YES bid/ask spread in cents.
func (m Market) SpreadCents() float64 {
	return m.YesAsk.Cents() - m.YesBid.Cents()
}

// Unpriced reports whether the market carries no real quote yet, per the
// scanner's placeholder-quote detection (§4.G).
func (m Market) Unpriced() bool {
	return (m.YesBid == 0 && m.YesAsk == 0) ||
		(m.YesBid == 0 && int64(m.YesAsk) == money.UnitsPerDollar)
}

// Event groups Markets; Series groups Events. Both are thin, read-only
// grouping records populated by the ingestion scheduler's discovery pass.
type Event struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Multivariate bool   `json:"is_multivariate"`
}

type Series struct {
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
	Category     string `json:"category"`
}
