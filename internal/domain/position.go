package domain

import (
	"time"

	"github.com/aristath/marketedge/internal/money"
)

// Lot is one FIFO acquisition record held inside a Position's open queue.
type Lot struct {
	Quantity   int64
	UnitCost   money.Amount
	AcquiredTS time.Time
}

// Position is a derived read-model for one (ticker, side) pair, always
// recomputable from the Fill history and never itself persisted as source
// of truth.
type Position struct {
	Ticker      string
	Side        Side
	OpenLots    []Lot
	RealizedPnL money.Amount
	FeesPaid    money.Amount
}

// OpenQuantity sums the quantity across all open lots.
func (p Position) OpenQuantity() int64 {
	var total int64
	for _, l := range p.OpenLots {
		total += l.Quantity
	}
	return total
}

// UnrealizedPnL computes Σ qty × (mark - unit_cost) for YES, and the
// symmetric (1-mark) - unit_cost relationship for NO, against a supplied
// mark price (an orderbook midpoint or the latest snapshot).
func (p Position) UnrealizedPnL(mark money.Amount) money.Amount {
	var total int64
	for _, l := range p.OpenLots {
		var diff int64
		if p.Side == SideYes {
			diff = int64(mark) - int64(l.UnitCost)
		} else {
			diff = (int64(money.UnitsPerDollar) - int64(mark)) - int64(l.UnitCost)
		}
		total += l.Quantity * diff
	}
	return money.Amount(total)
}
